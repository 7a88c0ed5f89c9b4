// Package syncer serves merged views of local and remote data and
// refreshes the local cache from the backend.
//
// Reads are dual-source: the local store always answers, and when the
// backend is reachable its records win over stale cached copies while
// local-only drafts survive. A backend failure degrades the read to
// the cache and reports it without failing the call outright.
package syncer

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/quillpad/quill/internal/model"
	"github.com/quillpad/quill/internal/reconcile"
	"github.com/quillpad/quill/internal/store"
)

// Source is the slice of the remote client the syncer reads from.
// *remote.Client satisfies it; tests substitute a fake.
type Source interface {
	Notes(ctx context.Context, uid string) ([]*model.Note, error)
	Events(ctx context.Context, uid string) ([]*model.CalendarEvent, error)
	Tags(ctx context.Context, uid string) ([]*model.Tag, error)
	Folders(ctx context.Context, uid string) ([]*model.Folder, error)
}

// Syncer mediates between the local store and the backend.
type Syncer struct {
	db     *store.DB
	src    Source
	logger *log.Logger
}

// New returns a syncer over db and src. logOut may be nil.
func New(db *store.DB, src Source, logOut io.Writer) *Syncer {
	if logOut == nil {
		logOut = log.Default().Writer()
	}
	return &Syncer{
		db:     db,
		src:    src,
		logger: log.New(logOut, "[syncer] ", log.LstdFlags),
	}
}

// Notes returns the merged note set for uid. When the backend cannot
// be reached the cached set is returned together with a
// *reconcile.RemoteUnavailableError; callers keep the data and may
// surface the degradation.
func (s *Syncer) Notes(ctx context.Context, uid string) ([]*model.Note, error) {
	local, err := s.db.ListNotes(ctx, store.NoteFilter{OwnerUID: uid})
	if err != nil {
		return nil, fmt.Errorf("failed to read cached notes: %w", err)
	}
	dead, err := s.db.Tombstoned(ctx, store.KindNote)
	if err != nil {
		return nil, fmt.Errorf("failed to read tombstones: %w", err)
	}
	return mergedFetch(ctx, s, local, dead,
		func(ctx context.Context) ([]*model.Note, error) { return s.src.Notes(ctx, uid) },
		func(ctx context.Context, n *model.Note) error { return s.db.ApplyRemoteNote(ctx, n) })
}

// Events returns the merged calendar event set for uid, with the same
// degrade behavior as Notes.
func (s *Syncer) Events(ctx context.Context, uid string) ([]*model.CalendarEvent, error) {
	local, err := s.db.ListEvents(ctx, store.EventFilter{OwnerUID: uid})
	if err != nil {
		return nil, fmt.Errorf("failed to read cached events: %w", err)
	}
	dead, err := s.db.Tombstoned(ctx, store.KindEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to read tombstones: %w", err)
	}
	return mergedFetch(ctx, s, local, dead,
		func(ctx context.Context) ([]*model.CalendarEvent, error) { return s.src.Events(ctx, uid) },
		func(ctx context.Context, e *model.CalendarEvent) error { return s.db.ApplyRemoteEvent(ctx, e) })
}

// Tags returns the merged tag set for uid.
func (s *Syncer) Tags(ctx context.Context, uid string) ([]*model.Tag, error) {
	local, err := s.db.ListTags(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached tags: %w", err)
	}
	dead, err := s.db.Tombstoned(ctx, store.KindTag)
	if err != nil {
		return nil, fmt.Errorf("failed to read tombstones: %w", err)
	}
	return mergedFetch(ctx, s, local, dead,
		func(ctx context.Context) ([]*model.Tag, error) { return s.src.Tags(ctx, uid) },
		func(ctx context.Context, tag *model.Tag) error { return s.db.ApplyRemoteTag(ctx, tag) })
}

// Folders returns the merged folder set for uid.
func (s *Syncer) Folders(ctx context.Context, uid string) ([]*model.Folder, error) {
	local, err := s.db.ListFolders(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached folders: %w", err)
	}
	dead, err := s.db.Tombstoned(ctx, store.KindFolder)
	if err != nil {
		return nil, fmt.Errorf("failed to read tombstones: %w", err)
	}
	return mergedFetch(ctx, s, local, dead,
		func(ctx context.Context) ([]*model.Folder, error) { return s.src.Folders(ctx, uid) },
		func(ctx context.Context, folder *model.Folder) error { return s.db.ApplyRemoteFolder(ctx, folder) })
}

// Refresh pulls every entity for uid into the local cache. It keeps
// going past per-entity failures and returns the first one, so a
// broken index on one collection does not starve the others.
func (s *Syncer) Refresh(ctx context.Context, uid string) error {
	var firstErr error
	if _, err := s.Notes(ctx, uid); err != nil && firstErr == nil {
		firstErr = err
	}
	if _, err := s.Events(ctx, uid); err != nil && firstErr == nil {
		firstErr = err
	}
	if _, err := s.Tags(ctx, uid); err != nil && firstErr == nil {
		firstErr = err
	}
	if _, err := s.Folders(ctx, uid); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// ApplyNotes absorbs a pushed note set, as delivered by a live
// subscription, into the cache. Tombstoned records are dropped.
func (s *Syncer) ApplyNotes(ctx context.Context, notes []*model.Note) error {
	dead, err := s.db.Tombstoned(ctx, store.KindNote)
	if err != nil {
		return fmt.Errorf("failed to read tombstones: %w", err)
	}
	for _, n := range notes {
		if dead[n.RemoteID] {
			continue
		}
		if err := s.db.ApplyRemoteNote(ctx, n); err != nil {
			return fmt.Errorf("failed to cache note %s: %w", n.RemoteID, err)
		}
	}
	return nil
}

// ApplyEvents absorbs a pushed event set into the cache.
func (s *Syncer) ApplyEvents(ctx context.Context, events []*model.CalendarEvent) error {
	dead, err := s.db.Tombstoned(ctx, store.KindEvent)
	if err != nil {
		return fmt.Errorf("failed to read tombstones: %w", err)
	}
	for _, e := range events {
		if dead[e.RemoteID] {
			continue
		}
		if err := s.db.ApplyRemoteEvent(ctx, e); err != nil {
			return fmt.Errorf("failed to cache event %s: %w", e.RemoteID, err)
		}
	}
	return nil
}

// mergedFetch runs the dual-source read for one entity: fetch the
// remote set, persist it into the cache, and merge it over the cached
// set with tombstones suppressed. A fetch failure degrades to the
// cached set.
func mergedFetch[T reconcile.Record](
	ctx context.Context,
	s *Syncer,
	local []T,
	dead map[string]bool,
	fetch func(context.Context) ([]T, error),
	persist func(context.Context, T) error,
) ([]T, error) {
	remote, err := fetch(ctx)
	if err != nil {
		s.logger.Printf("remote fetch failed, serving cache: %v", err)
		return local, &reconcile.RemoteUnavailableError{Err: err}
	}

	suppressed := func(key string) bool { return dead[key] }
	for _, rec := range remote {
		if suppressed(rec.RemoteKey()) {
			continue
		}
		if err := persist(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to cache remote record %s: %w", rec.RemoteKey(), err)
		}
	}

	return reconcile.MergeSuppressing(remote, local, suppressed), nil
}
