package remote

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies a remote failure so callers can pick a recovery
// strategy without matching on backend-specific error strings.
type Kind int

const (
	// KindUnknown covers failures that fit no other bucket.
	KindUnknown Kind = iota
	// KindTransient failures (network, deadline, backend overload) are
	// worth retrying with backoff.
	KindTransient
	// KindUnauthorized means the session is missing, expired, or lacks
	// access. Retrying without re-authenticating will not help.
	KindUnauthorized
	// KindNotFound means the addressed document does not exist.
	KindNotFound
	// KindMalformed means the request or payload was rejected as
	// invalid. Retrying the same payload will fail again.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error wraps a backend failure with its classification and the
// operation that produced it.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Classify maps an error from the Firestore or Auth client onto a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransient
	}

	switch status.Code(err) {
	case codes.NotFound:
		return KindNotFound
	case codes.Unauthenticated, codes.PermissionDenied:
		return KindUnauthorized
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return KindMalformed
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted,
		codes.Aborted, codes.Internal:
		return KindTransient
	default:
		return KindUnknown
	}
}

// wrap classifies err and attaches the operation name. A nil err passes
// through unchanged.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return err
	}
	return &Error{Op: op, Kind: Classify(err), Err: err}
}

// ErrKind extracts the Kind from an error chain. Errors that never
// passed through wrap, such as raw client status errors, are
// classified directly rather than reported as unknown.
func ErrKind(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return Classify(err)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool { return ErrKind(err) == KindTransient }

// IsNotFound reports whether err means the document does not exist.
func IsNotFound(err error) bool { return ErrKind(err) == KindNotFound }

// IsUnauthorized reports whether err means access was denied.
func IsUnauthorized(err error) bool { return ErrKind(err) == KindUnauthorized }
