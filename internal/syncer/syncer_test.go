package syncer

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/quillpad/quill/internal/model"
	"github.com/quillpad/quill/internal/reconcile"
	"github.com/quillpad/quill/internal/store"
)

type fakeSource struct {
	notes   []*model.Note
	events  []*model.CalendarEvent
	tags    []*model.Tag
	folders []*model.Folder
	err     error
}

func (f *fakeSource) Notes(context.Context, string) ([]*model.Note, error) {
	return f.notes, f.err
}

func (f *fakeSource) Events(context.Context, string) ([]*model.CalendarEvent, error) {
	return f.events, f.err
}

func (f *fakeSource) Tags(context.Context, string) ([]*model.Tag, error) {
	return f.tags, f.err
}

func (f *fakeSource) Folders(context.Context, string) ([]*model.Folder, error) {
	return f.folders, f.err
}

func setupSyncer(t *testing.T) (*store.DB, *fakeSource, *Syncer) {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	src := &fakeSource{}
	return db, src, New(db, src, io.Discard)
}

func remoteNote(id, title string, updated time.Time) *model.Note {
	n := &model.Note{
		RemoteID:   id,
		Title:      title,
		OwnerUID:   "uid-1",
		CreatedAt:  updated,
		UpdatedAt:  updated,
		SyncStatus: model.SyncStateSynced,
	}
	return n
}

func localNote(title string) *model.Note {
	n := &model.Note{Title: title, OwnerUID: "uid-1"}
	n.SetDefaults()
	return n
}

func TestNotesMergesRemoteOverCache(t *testing.T) {
	db, src, s := setupSyncer(t)
	ctx := context.Background()

	// Cache holds a stale copy of r1 and a never-synced draft.
	stale := remoteNote("r1", "Old title", time.Now().Add(-time.Hour))
	if err := db.ApplyRemoteNote(ctx, stale); err != nil {
		t.Fatalf("ApplyRemoteNote failed: %v", err)
	}
	draft := localNote("Offline draft")
	if err := db.CreateNote(ctx, draft); err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}

	src.notes = []*model.Note{remoteNote("r1", "New title", time.Now())}

	merged, err := s.Notes(ctx, "uid-1")
	if err != nil {
		t.Fatalf("Notes failed: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("merged set has %d notes, want 2", len(merged))
	}

	byTitle := map[string]bool{}
	for _, n := range merged {
		byTitle[n.Title] = true
	}
	if !byTitle["New title"] || !byTitle["Offline draft"] {
		t.Errorf("merged set wrong: %v", byTitle)
	}
	if byTitle["Old title"] {
		t.Error("stale cached copy survived the merge")
	}

	// The fetch refreshed the cache too.
	cached, err := db.GetNoteByRemoteID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetNoteByRemoteID failed: %v", err)
	}
	if cached.Title != "New title" {
		t.Errorf("cache not refreshed: %q", cached.Title)
	}
}

func TestNotesDegradesToCache(t *testing.T) {
	db, src, s := setupSyncer(t)
	ctx := context.Background()

	draft := localNote("Cached draft")
	if err := db.CreateNote(ctx, draft); err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}

	src.err = errors.New("network is down")

	merged, err := s.Notes(ctx, "uid-1")
	if err == nil {
		t.Fatal("expected a degrade error")
	}
	var unavailable *reconcile.RemoteUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("error is not RemoteUnavailableError: %v", err)
	}
	if !errors.Is(err, src.err) {
		t.Error("degrade error lost the cause")
	}
	if len(merged) != 1 || merged[0].Title != "Cached draft" {
		t.Errorf("degraded read did not serve the cache: %+v", merged)
	}
}

func TestNotesSuppressesTombstoned(t *testing.T) {
	db, src, s := setupSyncer(t)
	ctx := context.Background()

	// The user deleted r1 offline; the backend still has it.
	if err := db.AddTombstone(ctx, store.KindNote, "r1"); err != nil {
		t.Fatalf("AddTombstone failed: %v", err)
	}
	src.notes = []*model.Note{
		remoteNote("r1", "Deleted offline", time.Now()),
		remoteNote("r2", "Still alive", time.Now()),
	}

	merged, err := s.Notes(ctx, "uid-1")
	if err != nil {
		t.Fatalf("Notes failed: %v", err)
	}
	if len(merged) != 1 || merged[0].RemoteID != "r2" {
		t.Errorf("tombstoned note resurrected: %+v", merged)
	}

	// And it must not sneak back into the cache either.
	if _, err := db.GetNoteByRemoteID(ctx, "r1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("tombstoned note cached: %v", err)
	}
}

func TestNotesIdempotent(t *testing.T) {
	db, src, s := setupSyncer(t)
	ctx := context.Background()

	draft := localNote("Draft")
	if err := db.CreateNote(ctx, draft); err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}
	src.notes = []*model.Note{remoteNote("r1", "Synced", time.Now())}

	first, err := s.Notes(ctx, "uid-1")
	if err != nil {
		t.Fatalf("Notes failed: %v", err)
	}
	second, err := s.Notes(ctx, "uid-1")
	if err != nil {
		t.Fatalf("Notes failed: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("repeat read changed size: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Title != second[i].Title {
			t.Errorf("repeat read changed order at %d: %q vs %q", i, first[i].Title, second[i].Title)
		}
	}
}

func TestRefreshPullsAllEntities(t *testing.T) {
	db, src, s := setupSyncer(t)
	ctx := context.Background()

	now := time.Now()
	src.notes = []*model.Note{remoteNote("n1", "Note", now)}
	src.events = []*model.CalendarEvent{{
		RemoteID: "e1", Title: "Standup", OwnerUID: "uid-1",
		StartAt: now, EndAt: now.Add(time.Hour),
		CreatedAt: now, UpdatedAt: now,
	}}
	src.tags = []*model.Tag{{
		RemoteID: "t1", Name: "work", CreatorUID: "uid-1",
		CreatedAt: now, UpdatedAt: now,
	}}
	src.folders = []*model.Folder{{
		RemoteID: "f1", Name: "projects", OwnerUID: "uid-1",
		CreatedAt: now, UpdatedAt: now,
	}}

	if err := s.Refresh(ctx, "uid-1"); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if _, err := db.GetNoteByRemoteID(ctx, "n1"); err != nil {
		t.Errorf("note not cached: %v", err)
	}
	if _, err := db.GetEventByRemoteID(ctx, "e1"); err != nil {
		t.Errorf("event not cached: %v", err)
	}
	tags, _ := db.ListTags(ctx, "uid-1")
	if len(tags) != 1 {
		t.Errorf("tag not cached")
	}
	folders, _ := db.ListFolders(ctx, "uid-1")
	if len(folders) != 1 {
		t.Errorf("folder not cached")
	}
}

func TestApplyNotesDropsTombstoned(t *testing.T) {
	db, _, s := setupSyncer(t)
	ctx := context.Background()

	if err := db.AddTombstone(ctx, store.KindNote, "dead"); err != nil {
		t.Fatalf("AddTombstone failed: %v", err)
	}

	pushed := []*model.Note{
		remoteNote("dead", "Deleted offline", time.Now()),
		remoteNote("live", "Fresh", time.Now()),
	}
	if err := s.ApplyNotes(ctx, pushed); err != nil {
		t.Fatalf("ApplyNotes failed: %v", err)
	}

	if _, err := db.GetNoteByRemoteID(ctx, "live"); err != nil {
		t.Errorf("pushed note not cached: %v", err)
	}
	if _, err := db.GetNoteByRemoteID(ctx, "dead"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("tombstoned push cached: %v", err)
	}
}
