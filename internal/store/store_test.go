package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/quillpad/quill/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}
	return db
}

func testNote(title string) *model.Note {
	n := &model.Note{
		Title:    title,
		Content:  `[{"kind":"paragraph","text":"body"}]`,
		OwnerUID: "uid-1",
	}
	n.SetDefaults()
	return n
}

func TestInitSchemaIdempotent(t *testing.T) {
	db := setupTestDB(t)
	if err := db.InitSchema(); err != nil {
		t.Fatalf("second InitSchema failed: %v", err)
	}
}

func TestCreateAndGetNote(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	n := testNote("First")
	if err := db.CreateNote(ctx, n); err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}
	if n.LocalID == 0 {
		t.Fatal("CreateNote did not assign a local id")
	}

	got, err := db.GetNote(ctx, n.LocalID)
	if err != nil {
		t.Fatalf("GetNote failed: %v", err)
	}
	if got.Title != "First" || got.Content != n.Content {
		t.Errorf("round trip changed fields: %+v", got)
	}
	if got.RemoteID != "" {
		t.Errorf("fresh note should have no remote id, got %q", got.RemoteID)
	}
	if got.SyncStatus != model.SyncStatePending {
		t.Errorf("fresh note sync status = %q, want pending", got.SyncStatus)
	}
}

func TestGetNoteNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetNote(context.Background(), 999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNoteBlobsRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	n := testNote("Tagged")
	n.TagIDs = []string{"t1", "t2"}
	n.Shares = []model.SharePermission{model.NewShare("pal@example.com", model.AccessView)}
	if err := db.CreateNote(ctx, n); err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}

	got, err := db.GetNote(ctx, n.LocalID)
	if err != nil {
		t.Fatalf("GetNote failed: %v", err)
	}
	if len(got.TagIDs) != 2 || got.TagIDs[1] != "t2" {
		t.Errorf("tag ids lost: %v", got.TagIDs)
	}
	if len(got.Shares) != 1 || got.Shares[0].RecipientEmail != "pal@example.com" {
		t.Errorf("shares lost: %+v", got.Shares)
	}
	if got.Shares[0].Access != model.AccessView || got.Shares[0].Status != model.SharePending {
		t.Errorf("share fields wrong: %+v", got.Shares[0])
	}
}

func TestApplyRemoteNoteReplacesWholesale(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// Cached copy, already synced once.
	stale := testNote("Stale title")
	stale.RemoteID = "r1"
	stale.TagIDs = []string{"old-tag"}
	if err := db.CreateNote(ctx, stale); err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}

	fresh := testNote("Fresh title")
	fresh.RemoteID = "r1"
	fresh.UpdatedAt = stale.UpdatedAt.Add(time.Minute)
	if err := db.ApplyRemoteNote(ctx, fresh); err != nil {
		t.Fatalf("ApplyRemoteNote failed: %v", err)
	}

	got, err := db.GetNoteByRemoteID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetNoteByRemoteID failed: %v", err)
	}
	if got.Title != "Fresh title" {
		t.Errorf("remote copy did not win: %q", got.Title)
	}
	// No field-level merge: the stale tag list must be gone.
	if len(got.TagIDs) != 0 {
		t.Errorf("stale fields survived the replace: %v", got.TagIDs)
	}
	if got.SyncStatus != model.SyncStateSynced {
		t.Errorf("applied remote note sync status = %q, want synced", got.SyncStatus)
	}
	if got.LocalID != stale.LocalID {
		t.Errorf("replace changed the local id: %d -> %d", stale.LocalID, got.LocalID)
	}
}

func TestApplyRemoteNoteInsertsNew(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	n := testNote("From server")
	n.RemoteID = "r9"
	if err := db.ApplyRemoteNote(ctx, n); err != nil {
		t.Fatalf("ApplyRemoteNote failed: %v", err)
	}

	got, err := db.GetNoteByRemoteID(ctx, "r9")
	if err != nil {
		t.Fatalf("GetNoteByRemoteID failed: %v", err)
	}
	if got.LocalID == 0 {
		t.Error("inserted remote note has no local id")
	}
}

func TestListNotesFilters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := testNote("A")
	a.FolderID = "f1"
	b := testNote("B")
	c := testNote("C")
	c.OwnerUID = "uid-2"
	for _, n := range []*model.Note{a, b, c} {
		if err := db.CreateNote(ctx, n); err != nil {
			t.Fatalf("CreateNote failed: %v", err)
		}
	}

	mine, err := db.ListNotes(ctx, NoteFilter{OwnerUID: "uid-1"})
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("owner filter returned %d notes, want 2", len(mine))
	}

	filed, err := db.ListNotes(ctx, NoteFilter{FolderID: "f1"})
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(filed) != 1 || filed[0].Title != "A" {
		t.Errorf("folder filter wrong: %d notes", len(filed))
	}

	limited, err := db.ListNotes(ctx, NoteFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit ignored: %d notes", len(limited))
	}
}

func TestListNotesNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	old := testNote("old")
	old.UpdatedAt = time.Now().Add(-time.Hour)
	recent := testNote("recent")
	for _, n := range []*model.Note{old, recent} {
		if err := db.CreateNote(ctx, n); err != nil {
			t.Fatalf("CreateNote failed: %v", err)
		}
	}

	notes, err := db.ListNotes(ctx, NoteFilter{})
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(notes) != 2 || notes[0].Title != "recent" {
		t.Errorf("expected recent first, got %+v", notes[0])
	}
}

func TestSetNoteSync(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	n := testNote("draft")
	if err := db.CreateNote(ctx, n); err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}

	if err := db.SetNoteSync(ctx, n.LocalID, "r42", model.SyncStateSynced); err != nil {
		t.Fatalf("SetNoteSync failed: %v", err)
	}

	got, err := db.GetNote(ctx, n.LocalID)
	if err != nil {
		t.Fatalf("GetNote failed: %v", err)
	}
	if got.RemoteID != "r42" || got.SyncStatus != model.SyncStateSynced {
		t.Errorf("sync outcome not recorded: %q %q", got.RemoteID, got.SyncStatus)
	}

	// Empty remote id must not clear an assigned one.
	if err := db.SetNoteSync(ctx, n.LocalID, "", model.SyncStateError); err != nil {
		t.Fatalf("SetNoteSync failed: %v", err)
	}
	got, _ = db.GetNote(ctx, n.LocalID)
	if got.RemoteID != "r42" {
		t.Errorf("error state cleared the remote id: %q", got.RemoteID)
	}
	if got.SyncStatus != model.SyncStateError {
		t.Errorf("sync status = %q, want error", got.SyncStatus)
	}
}

func TestDeleteNoteIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	n := testNote("gone")
	if err := db.CreateNote(ctx, n); err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}
	if err := db.DeleteNote(ctx, n.LocalID); err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}
	if err := db.DeleteNote(ctx, n.LocalID); err != nil {
		t.Fatalf("second DeleteNote failed: %v", err)
	}
}

func TestEventsRoundTripAndRange(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	for i, title := range []string{"mon", "tue", "wed"} {
		e := &model.CalendarEvent{
			Title:    title,
			StartAt:  base.AddDate(0, 0, i),
			OwnerUID: "uid-1",
			AllDay:   i == 2,
		}
		e.SetDefaults()
		if err := db.CreateEvent(ctx, e); err != nil {
			t.Fatalf("CreateEvent failed: %v", err)
		}
	}

	events, err := db.ListEvents(ctx, EventFilter{
		From:  base.AddDate(0, 0, 1),
		Until: base.AddDate(0, 0, 2),
	})
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].Title != "tue" {
		t.Errorf("range filter wrong: %d events", len(events))
	}

	all, err := db.ListEvents(ctx, EventFilter{OwnerUID: "uid-1"})
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	if !all[2].AllDay {
		t.Errorf("all-day flag lost: %+v", all[2])
	}
	for i := 1; i < len(all); i++ {
		if all[i].StartAt.Before(all[i-1].StartAt) {
			t.Errorf("events not ordered by start time")
		}
	}
}

func TestTagsAndFolders(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tag := &model.Tag{Name: "work", Color: "#336699", CreatorUID: "uid-1"}
	tag.SetDefaults()
	if err := db.CreateTag(ctx, tag); err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}

	tags, err := db.ListTags(ctx, "uid-1")
	if err != nil {
		t.Fatalf("ListTags failed: %v", err)
	}
	if len(tags) != 1 || tags[0].Color != "#336699" {
		t.Errorf("tag round trip wrong: %+v", tags)
	}

	folder := &model.Folder{Name: "projects", OwnerUID: "uid-1"}
	folder.SetDefaults()
	if err := db.CreateFolder(ctx, folder); err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}
	if err := db.SetFolderSync(ctx, folder.LocalID, "fr1", model.SyncStateSynced); err != nil {
		t.Fatalf("SetFolderSync failed: %v", err)
	}

	n := testNote("filed")
	n.FolderID = "fr1"
	if err := db.CreateNote(ctx, n); err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}

	if err := db.DeleteFolder(ctx, folder.LocalID); err != nil {
		t.Fatalf("DeleteFolder failed: %v", err)
	}

	got, err := db.GetNote(ctx, n.LocalID)
	if err != nil {
		t.Fatalf("GetNote failed: %v", err)
	}
	if got.FolderID != "" {
		t.Errorf("note still filed in deleted folder: %q", got.FolderID)
	}
}

func TestSyncStateCounts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, title := range []string{"a", "b"} {
		if err := db.CreateNote(ctx, testNote(title)); err != nil {
			t.Fatalf("CreateNote failed: %v", err)
		}
	}
	n := testNote("c")
	if err := db.CreateNote(ctx, n); err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}
	if err := db.SetNoteSync(ctx, n.LocalID, "r1", model.SyncStateSynced); err != nil {
		t.Fatalf("SetNoteSync failed: %v", err)
	}

	counts, err := db.SyncStateCounts(ctx, KindNote)
	if err != nil {
		t.Fatalf("SyncStateCounts failed: %v", err)
	}
	if counts["pending"] != 2 || counts["synced"] != 1 {
		t.Errorf("counts = %v, want 2 pending 1 synced", counts)
	}

	if _, err := db.SyncStateCounts(ctx, Kind("bogus")); err == nil {
		t.Error("expected error for unknown kind")
	}
}
