package model

import (
	"strings"
	"testing"
	"time"
)

func validNote() *Note {
	now := time.Now()
	return &Note{
		Title:     "Groceries",
		Content:   `[{"kind":"paragraph","text":"milk"}]`,
		OwnerUID:  "uid-1",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestNoteValidate(t *testing.T) {
	if err := validNote().Validate(); err != nil {
		t.Fatalf("valid note rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Note)
	}{
		{"missing title", func(n *Note) { n.Title = "" }},
		{"title too long", func(n *Note) { n.Title = strings.Repeat("x", 501) }},
		{"missing owner", func(n *Note) { n.OwnerUID = "" }},
		{"zero created_at", func(n *Note) { n.CreatedAt = time.Time{} }},
		{"zero updated_at", func(n *Note) { n.UpdatedAt = time.Time{} }},
		{"bad sync status", func(n *Note) { n.SyncStatus = "unknowable" }},
		{"bad share", func(n *Note) {
			n.Shares = []SharePermission{{RecipientEmail: "not-an-email", Access: AccessView, Status: SharePending}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := validNote()
			tt.mutate(n)
			if err := n.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestNoteSetDefaults(t *testing.T) {
	n := &Note{Title: "x", OwnerUID: "uid-1"}
	n.SetDefaults()

	if n.CreatedAt.IsZero() || n.UpdatedAt.IsZero() {
		t.Error("SetDefaults left zero timestamps")
	}
	if n.SyncStatus != SyncStatePending {
		t.Errorf("expected pending sync status, got %q", n.SyncStatus)
	}
	if err := n.Validate(); err != nil {
		t.Errorf("note invalid after SetDefaults: %v", err)
	}
}

func TestNoteTouch(t *testing.T) {
	n := validNote()
	before := n.UpdatedAt

	time.Sleep(time.Millisecond)
	n.Touch()

	if !n.UpdatedAt.After(before) {
		t.Error("Touch did not advance UpdatedAt")
	}
	if n.EditedAt == nil || !n.EditedAt.Equal(n.UpdatedAt) {
		t.Error("Touch did not set EditedAt")
	}
}

func TestCalendarEventValidate(t *testing.T) {
	now := time.Now()
	ev := &CalendarEvent{
		Title:     "Standup",
		StartAt:   now,
		EndAt:     now.Add(30 * time.Minute),
		OwnerUID:  "uid-1",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := ev.Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}

	ev.EndAt = now.Add(-time.Hour)
	if err := ev.Validate(); err == nil {
		t.Error("expected error for end before start")
	}

	// All-day events may collapse to a single instant.
	ev.EndAt = ev.StartAt
	ev.AllDay = true
	if err := ev.Validate(); err != nil {
		t.Errorf("all-day event with equal start/end rejected: %v", err)
	}
}

func TestCalendarEventDefaultsEnd(t *testing.T) {
	start := time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)

	ev := &CalendarEvent{Title: "x", OwnerUID: "u", StartAt: start}
	ev.SetDefaults()
	if !ev.EndAt.Equal(start.Add(time.Hour)) {
		t.Errorf("timed event default end = %v, want start+1h", ev.EndAt)
	}

	allDay := &CalendarEvent{Title: "x", OwnerUID: "u", StartAt: start, AllDay: true}
	allDay.SetDefaults()
	if !allDay.EndAt.Equal(start) {
		t.Errorf("all-day event default end = %v, want start", allDay.EndAt)
	}
}

func TestTagValidate(t *testing.T) {
	now := time.Now()
	tag := &Tag{Name: "work", Color: "#ff8800", CreatorUID: "uid-1", CreatedAt: now, UpdatedAt: now}
	if err := tag.Validate(); err != nil {
		t.Fatalf("valid tag rejected: %v", err)
	}

	tag.Color = "orange"
	if err := tag.Validate(); err == nil {
		t.Error("expected error for non-hex color")
	}

	tag.Color = ""
	if err := tag.Validate(); err != nil {
		t.Errorf("empty color should be allowed: %v", err)
	}
}

func TestSharePermissionValidate(t *testing.T) {
	s := NewShare("friend@example.com", AccessEdit)
	if err := s.Validate(); err != nil {
		t.Fatalf("valid share rejected: %v", err)
	}
	if s.Status != SharePending {
		t.Errorf("new share status = %q, want pending", s.Status)
	}

	bad := SharePermission{RecipientEmail: "a@b.c", Access: "admin", Status: SharePending}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unknown access level")
	}
}

func TestOrderTimeKeys(t *testing.T) {
	start := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	updated := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	ev := &CalendarEvent{StartAt: start, UpdatedAt: updated}
	if !ev.OrderTime().Equal(start) {
		t.Error("events must order by start time")
	}

	n := &Note{UpdatedAt: updated}
	if !n.OrderTime().Equal(updated) {
		t.Error("notes must order by update time")
	}
}
