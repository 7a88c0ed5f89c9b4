// Package mirror keeps local edits flowing up to the remote backend.
//
// Writes land in the local store first and return immediately; a
// durable outbox entry records the pending upload. The Flusher drains
// the outbox in the background, with exponential backoff for transient
// backend failures. A record whose upload fails for good is flagged
// with an error sync state instead of blocking the queue.
package mirror

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/quillpad/quill/internal/model"
	"github.com/quillpad/quill/internal/store"
)

// Writer applies edits optimistically: the local store is updated
// synchronously and the remote upload is queued for the Flusher.
type Writer struct {
	db     *store.DB
	logger *log.Logger
}

// NewWriter returns a writer over db. logOut may be nil.
func NewWriter(db *store.DB, logOut io.Writer) *Writer {
	if logOut == nil {
		logOut = log.Default().Writer()
	}
	return &Writer{
		db:     db,
		logger: log.New(logOut, "[mirror] ", log.LstdFlags),
	}
}

// CreateNote stores n locally and queues its upload.
func (w *Writer) CreateNote(ctx context.Context, n *model.Note) error {
	n.SetDefaults()
	if err := w.db.CreateNote(ctx, n); err != nil {
		return err
	}
	return w.enqueue(ctx, store.KindNote, store.OpUpsert, n.LocalID, "")
}

// UpdateNote stores the edit locally and queues its upload.
func (w *Writer) UpdateNote(ctx context.Context, n *model.Note) error {
	n.Touch()
	n.SyncStatus = model.SyncStatePending
	if err := w.db.UpdateNote(ctx, n); err != nil {
		return err
	}
	return w.enqueue(ctx, store.KindNote, store.OpUpsert, n.LocalID, "")
}

// DeleteNote removes the note locally. If the note was ever synced, a
// tombstone suppresses it from future pulls and the remote delete is
// queued.
func (w *Writer) DeleteNote(ctx context.Context, localID int64) error {
	n, err := w.db.GetNote(ctx, localID)
	if err != nil {
		return err
	}
	if err := w.db.DeleteNote(ctx, localID); err != nil {
		return err
	}
	if n.RemoteID == "" {
		// Never synced, there is nothing to delete remotely.
		return nil
	}
	if err := w.db.AddTombstone(ctx, store.KindNote, n.RemoteID); err != nil {
		return err
	}
	return w.enqueue(ctx, store.KindNote, store.OpDelete, 0, n.RemoteID)
}

// CreateEvent stores e locally and queues its upload.
func (w *Writer) CreateEvent(ctx context.Context, e *model.CalendarEvent) error {
	e.SetDefaults()
	if err := w.db.CreateEvent(ctx, e); err != nil {
		return err
	}
	return w.enqueue(ctx, store.KindEvent, store.OpUpsert, e.LocalID, "")
}

// UpdateEvent stores the edit locally and queues its upload.
func (w *Writer) UpdateEvent(ctx context.Context, e *model.CalendarEvent) error {
	e.Touch()
	e.SyncStatus = model.SyncStatePending
	if err := w.db.UpdateEvent(ctx, e); err != nil {
		return err
	}
	return w.enqueue(ctx, store.KindEvent, store.OpUpsert, e.LocalID, "")
}

// DeleteEvent removes the event locally, tombstoning synced copies.
func (w *Writer) DeleteEvent(ctx context.Context, localID int64) error {
	e, err := w.db.GetEvent(ctx, localID)
	if err != nil {
		return err
	}
	if err := w.db.DeleteEvent(ctx, localID); err != nil {
		return err
	}
	if e.RemoteID == "" {
		return nil
	}
	if err := w.db.AddTombstone(ctx, store.KindEvent, e.RemoteID); err != nil {
		return err
	}
	return w.enqueue(ctx, store.KindEvent, store.OpDelete, 0, e.RemoteID)
}

// CreateTag stores tag locally and queues its upload.
func (w *Writer) CreateTag(ctx context.Context, tag *model.Tag) error {
	tag.SetDefaults()
	if err := w.db.CreateTag(ctx, tag); err != nil {
		return err
	}
	return w.enqueue(ctx, store.KindTag, store.OpUpsert, tag.LocalID, "")
}

// DeleteTag removes the tag locally, tombstoning synced copies.
func (w *Writer) DeleteTag(ctx context.Context, localID int64) error {
	tag, err := w.db.GetTag(ctx, localID)
	if err != nil {
		return err
	}
	if err := w.db.DeleteTag(ctx, localID); err != nil {
		return err
	}
	if tag.RemoteID == "" {
		return nil
	}
	if err := w.db.AddTombstone(ctx, store.KindTag, tag.RemoteID); err != nil {
		return err
	}
	return w.enqueue(ctx, store.KindTag, store.OpDelete, 0, tag.RemoteID)
}

// CreateFolder stores folder locally and queues its upload.
func (w *Writer) CreateFolder(ctx context.Context, folder *model.Folder) error {
	folder.SetDefaults()
	if err := w.db.CreateFolder(ctx, folder); err != nil {
		return err
	}
	return w.enqueue(ctx, store.KindFolder, store.OpUpsert, folder.LocalID, "")
}

// DeleteFolder removes the folder locally and unfiles its notes,
// tombstoning synced copies.
func (w *Writer) DeleteFolder(ctx context.Context, localID int64) error {
	folder, err := w.db.GetFolder(ctx, localID)
	if err != nil {
		return err
	}
	if err := w.db.DeleteFolder(ctx, localID); err != nil {
		return err
	}
	if folder.RemoteID == "" {
		return nil
	}
	if err := w.db.AddTombstone(ctx, store.KindFolder, folder.RemoteID); err != nil {
		return err
	}
	return w.enqueue(ctx, store.KindFolder, store.OpDelete, 0, folder.RemoteID)
}

func (w *Writer) enqueue(ctx context.Context, kind store.Kind, op store.OutboxOp, localID int64, remoteID string) error {
	if _, err := w.db.EnqueueOutbox(ctx, kind, op, localID, remoteID); err != nil {
		return fmt.Errorf("local write succeeded but upload could not be queued: %w", err)
	}
	return nil
}

// Pending reports how many uploads are waiting in the outbox.
func (w *Writer) Pending(ctx context.Context) (int, error) {
	return w.db.OutboxCount(ctx)
}
