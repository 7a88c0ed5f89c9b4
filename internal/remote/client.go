// Package remote talks to the Firestore backend that holds the
// authoritative copy of every synced record.
//
// The local cache treats this backend as the source of truth: reads
// pull whole owned collections, writes mirror local changes up, and
// snapshot watches stream the full owned set on every change. All
// calls carry a per-call deadline and surface failures as classified
// *Error values (see errors.go).
package remote

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/quillpad/quill/internal/session"
)

const (
	collNotes   = "notes"
	collEvents  = "calendar_events"
	collTags    = "tags"
	collFolders = "folders"
)

// DefaultCallTimeout bounds a single backend call when the config does
// not override it.
const DefaultCallTimeout = 10 * time.Second

// Config holds connection settings for the backend.
type Config struct {
	// ProjectID is the Firebase project to connect to.
	ProjectID string

	// CredentialsFile points at a service account key file. When both
	// credential fields are empty, Application Default Credentials are
	// used.
	CredentialsFile string

	// CredentialsJSON holds a service account key inline. Takes effect
	// only when CredentialsFile is empty.
	CredentialsJSON []byte

	// CallTimeout bounds each backend call. Zero means
	// DefaultCallTimeout. Watches are not subject to it.
	CallTimeout time.Duration

	// LogOutput receives client logs. Nil means standard error.
	LogOutput io.Writer
}

// Client is a connection to the backend. It is safe for concurrent use.
type Client struct {
	fs      *firestore.Client
	auth    *auth.Client
	timeout time.Duration
	logger  *log.Logger
}

// Dial connects to the backend described by cfg.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("remote: project id is required")
	}

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case len(cfg.CredentialsJSON) > 0:
		opts = append(opts, option.WithCredentialsJSON(cfg.CredentialsJSON))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth client: %w", err)
	}

	fsClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firestore client: %w", err)
	}

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	logOut := cfg.LogOutput
	if logOut == nil {
		logOut = log.Default().Writer()
	}

	return &Client{
		fs:      fsClient,
		auth:    authClient,
		timeout: timeout,
		logger:  log.New(logOut, "[remote] ", log.LstdFlags),
	}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c.fs == nil {
		return nil
	}
	return c.fs.Close()
}

// VerifySession validates a Firebase ID token and builds the session it
// represents.
func (c *Client) VerifySession(ctx context.Context, idToken string) (*session.Session, error) {
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	token, err := c.auth.VerifyIDToken(callCtx, idToken)
	if err != nil {
		return nil, wrap("verify token", err)
	}

	s := &session.Session{UID: token.UID}
	if v, ok := token.Claims["email"].(string); ok {
		s.Email = v
	}
	if v, ok := token.Claims["name"].(string); ok {
		s.DisplayName = v
	}
	if v, ok := token.Claims["picture"].(string); ok {
		s.PhotoURL = v
	}
	return s, nil
}

// callCtx derives a deadline-bounded context for a single call.
func (c *Client) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// collectDocs drains a document iterator.
func collectDocs(it *firestore.DocumentIterator) ([]*firestore.DocumentSnapshot, error) {
	defer it.Stop()

	var docs []*firestore.DocumentSnapshot
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			return docs, nil
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
}

// idChunks splits an id set into slices small enough for a single
// disjunctive Firestore query.
const maxIDsPerQuery = 10

func idChunks(ids []string) [][]string {
	var chunks [][]string
	for len(ids) > maxIDsPerQuery {
		chunks = append(chunks, ids[:maxIDsPerQuery])
		ids = ids[maxIDsPerQuery:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}
