package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Record is the minimal surface an entity needs to be merged.
// All model entities (notes, events, tags, folders) satisfy it.
type Record interface {
	// RemoteKey returns the external id assigned by the hosted store.
	// Empty means the record has never been uploaded.
	RemoteKey() string

	// OrderTime returns the entity's natural ordering key, e.g. the
	// update time for notes or the start time for calendar events.
	OrderTime() time.Time
}

// Merge combines remote and local copies of one entity set into a single
// de-duplicated list, unique by external id where present.
//
// Remote records win every key collision: a local record sharing an
// external id with a remote record is dropped in favor of the remote copy.
// Local records with no external id, or with an id the remote side does
// not know, are kept. The result is sorted by OrderTime descending
// (freshest first); ties preserve remote-before-local insertion order.
//
// Merge reads but never mutates its inputs.
func Merge[T Record](remote, local []T) []T {
	return MergeSuppressing(remote, local, nil)
}

// MergeSuppressing is Merge with a tombstone filter. A remote record whose
// external id the filter reports as suppressed is excluded from the output.
// This keeps records deleted offline from resurrecting on the next pull
// while the deletion is still waiting in the outbox. A nil filter
// suppresses nothing.
func MergeSuppressing[T Record](remote, local []T, suppressed func(key string) bool) []T {
	seen := make(map[string]struct{}, len(remote)+len(local))
	merged := make([]T, 0, len(remote)+len(local))

	// Remote first: it unconditionally wins key collisions.
	for _, r := range remote {
		key := r.RemoteKey()
		if key == "" {
			// A remote record always carries an id; tolerate the
			// contract violation rather than dropping data.
			merged = append(merged, r)
			continue
		}
		if suppressed != nil && suppressed(key) {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, r)
	}

	// Local records survive only when the remote side doesn't know them.
	for _, l := range local {
		key := l.RemoteKey()
		if key == "" {
			merged = append(merged, l)
			continue
		}
		if suppressed != nil && suppressed(key) {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, l)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].OrderTime().After(merged[j].OrderTime())
	})

	return merged
}

// RemoteUnavailableError reports that the remote fetch failed and the
// merge degraded to local-only data. It is recoverable: the caller shows
// a notification and keeps rendering the cached records.
type RemoteUnavailableError struct {
	Err error
}

// Error implements the error interface.
func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("remote fetch failed, showing cached data: %v", e.Err)
}

// Unwrap returns the underlying fetch error.
func (e *RemoteUnavailableError) Unwrap() error { return e.Err }

// FetchMerged fetches the remote copy of an entity set and merges it with
// the local records.
//
// If the fetch fails, the local records are returned unmodified together
// with a *RemoteUnavailableError; the caller decides how to surface it.
// The error never propagates as a crash and the result is never empty
// because of a network failure.
func FetchMerged[T Record](ctx context.Context, fetch func(ctx context.Context) ([]T, error), local []T) ([]T, error) {
	remote, err := fetch(ctx)
	if err != nil {
		return local, &RemoteUnavailableError{Err: err}
	}
	return Merge(remote, local), nil
}
