package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/quillpad/quill/internal/model"
	"github.com/quillpad/quill/internal/remote"
	"github.com/quillpad/quill/internal/store"
)

// Backend is the slice of the remote client the flusher uploads
// through. *remote.Client satisfies it; tests substitute a fake.
type Backend interface {
	PutNote(ctx context.Context, n *model.Note) (string, error)
	DeleteNote(ctx context.Context, remoteID string) error
	PutEvent(ctx context.Context, e *model.CalendarEvent) (string, error)
	DeleteEvent(ctx context.Context, remoteID string) error
	PutTag(ctx context.Context, tag *model.Tag) (string, error)
	DeleteTag(ctx context.Context, remoteID string) error
	PutFolder(ctx context.Context, folder *model.Folder) (string, error)
	DeleteFolder(ctx context.Context, remoteID string) error
}

// FlusherConfig tunes retry behavior.
type FlusherConfig struct {
	// BaseDelay is the wait before the first retry. Doubles per
	// attempt. Zero means 5 seconds.
	BaseDelay time.Duration

	// MaxDelay caps the backoff. Zero means 10 minutes.
	MaxDelay time.Duration

	// BatchSize bounds how many entries one Flush pass takes on.
	// Zero means 50.
	BatchSize int

	// LogOutput receives flusher logs. Nil means standard error.
	LogOutput io.Writer
}

// Flusher drains the outbox against the backend.
type Flusher struct {
	db      *store.DB
	backend Backend
	logger  *log.Logger

	baseDelay time.Duration
	maxDelay  time.Duration
	batchSize int
}

// NewFlusher returns a flusher over db and backend.
func NewFlusher(db *store.DB, backend Backend, cfg FlusherConfig) *Flusher {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 5 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	logOut := cfg.LogOutput
	if logOut == nil {
		logOut = log.Default().Writer()
	}
	return &Flusher{
		db:        db,
		backend:   backend,
		logger:    log.New(logOut, "[mirror] ", log.LstdFlags),
		baseDelay: cfg.BaseDelay,
		maxDelay:  cfg.MaxDelay,
		batchSize: cfg.BatchSize,
	}
}

// Flush processes one batch of due outbox entries. It returns the
// number of entries completed. Entries that fail transiently stay
// queued with backoff; entries that cannot ever succeed flag their
// record and are dropped.
func (f *Flusher) Flush(ctx context.Context) (int, error) {
	due, err := f.db.DueOutbox(ctx, time.Now(), f.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to read outbox: %w", err)
	}

	done := 0
	for _, entry := range due {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if err := f.process(ctx, *entry); err != nil {
			f.retire(ctx, *entry, err)
			continue
		}
		if err := f.db.CompleteOutbox(ctx, entry.ID); err != nil {
			return done, fmt.Errorf("failed to complete outbox entry %d: %w", entry.ID, err)
		}
		done++
	}
	return done, nil
}

// process performs one upload or remote delete.
func (f *Flusher) process(ctx context.Context, entry store.OutboxEntry) error {
	if entry.Op == store.OpDelete {
		return f.processDelete(ctx, entry)
	}
	return f.processUpsert(ctx, entry)
}

func (f *Flusher) processUpsert(ctx context.Context, entry store.OutboxEntry) error {
	switch entry.Kind {
	case store.KindNote:
		n, err := f.db.GetNote(ctx, entry.LocalID)
		if errors.Is(err, store.ErrNotFound) {
			// Deleted locally before the upload ran.
			return nil
		}
		if err != nil {
			return err
		}
		remoteID, err := f.backend.PutNote(ctx, n)
		if err != nil {
			return err
		}
		return f.db.SetNoteSync(ctx, entry.LocalID, remoteID, model.SyncStateSynced)

	case store.KindEvent:
		e, err := f.db.GetEvent(ctx, entry.LocalID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		remoteID, err := f.backend.PutEvent(ctx, e)
		if err != nil {
			return err
		}
		return f.db.SetEventSync(ctx, entry.LocalID, remoteID, model.SyncStateSynced)

	case store.KindTag:
		tag, err := f.db.GetTag(ctx, entry.LocalID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		remoteID, err := f.backend.PutTag(ctx, tag)
		if err != nil {
			return err
		}
		return f.db.SetTagSync(ctx, entry.LocalID, remoteID, model.SyncStateSynced)

	case store.KindFolder:
		folder, err := f.db.GetFolder(ctx, entry.LocalID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		remoteID, err := f.backend.PutFolder(ctx, folder)
		if err != nil {
			return err
		}
		return f.db.SetFolderSync(ctx, entry.LocalID, remoteID, model.SyncStateSynced)

	default:
		return fmt.Errorf("unknown outbox kind %q", entry.Kind)
	}
}

func (f *Flusher) processDelete(ctx context.Context, entry store.OutboxEntry) error {
	var err error
	switch entry.Kind {
	case store.KindNote:
		err = f.backend.DeleteNote(ctx, entry.RemoteID)
	case store.KindEvent:
		err = f.backend.DeleteEvent(ctx, entry.RemoteID)
	case store.KindTag:
		err = f.backend.DeleteTag(ctx, entry.RemoteID)
	case store.KindFolder:
		err = f.backend.DeleteFolder(ctx, entry.RemoteID)
	default:
		return fmt.Errorf("unknown outbox kind %q", entry.Kind)
	}
	if err != nil && !remote.IsNotFound(err) {
		return err
	}
	// The document is gone remotely; the tombstone has done its job.
	return f.db.RemoveTombstone(ctx, entry.Kind, entry.RemoteID)
}

// retire decides what happens to a failed entry: transient failures
// reschedule with backoff, anything else flags the record and drops
// the entry so the queue keeps moving.
func (f *Flusher) retire(ctx context.Context, entry store.OutboxEntry, cause error) {
	kind := remote.ErrKind(cause)
	if kind == remote.KindTransient || kind == remote.KindUnknown {
		next := time.Now().Add(f.backoff(entry.Attempts))
		f.logger.Printf("upload of %s/%d failed (attempt %d, retry %s): %v",
			entry.Kind, entry.ID, entry.Attempts+1, next.Format(time.RFC3339), cause)
		if err := f.db.FailOutbox(ctx, entry.ID, cause, next); err != nil {
			f.logger.Printf("failed to reschedule outbox entry %d: %v", entry.ID, err)
		}
		return
	}

	f.logger.Printf("upload of %s/%d failed permanently (%s): %v", entry.Kind, entry.ID, kind, cause)
	if entry.Op == store.OpUpsert {
		if err := f.flagError(ctx, entry); err != nil {
			f.logger.Printf("failed to flag record for outbox entry %d: %v", entry.ID, err)
		}
	} else {
		// The remote copy was never deleted; its tombstone stays behind
		// and keeps suppressing it on pulls. Sync status surfaces it.
		f.logger.Printf("tombstone for %s %s is orphaned: remote delete abandoned", entry.Kind, entry.RemoteID)
	}
	if err := f.db.CompleteOutbox(ctx, entry.ID); err != nil {
		f.logger.Printf("failed to drop outbox entry %d: %v", entry.ID, err)
	}
}

func (f *Flusher) flagError(ctx context.Context, entry store.OutboxEntry) error {
	switch entry.Kind {
	case store.KindNote:
		return f.db.SetNoteSync(ctx, entry.LocalID, "", model.SyncStateError)
	case store.KindEvent:
		return f.db.SetEventSync(ctx, entry.LocalID, "", model.SyncStateError)
	case store.KindTag:
		return f.db.SetTagSync(ctx, entry.LocalID, "", model.SyncStateError)
	case store.KindFolder:
		return f.db.SetFolderSync(ctx, entry.LocalID, "", model.SyncStateError)
	}
	return nil
}

// backoff doubles per attempt, capped at maxDelay.
func (f *Flusher) backoff(attempts int) time.Duration {
	d := f.baseDelay
	for i := 0; i < attempts && d < f.maxDelay; i++ {
		d *= 2
	}
	if d > f.maxDelay {
		d = f.maxDelay
	}
	return d
}
