package session

import (
	"context"
	"testing"
)

func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	if m.Active() {
		t.Fatal("fresh manager should have no session")
	}

	s := &Session{UID: "uid-1", Email: "me@example.com"}
	if err := m.Set(s); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !m.Active() {
		t.Fatal("session not active after Set")
	}
	if got := m.Current(); got.UID != "uid-1" {
		t.Errorf("Current returned %+v", got)
	}
	if m.Current().StartedAt.IsZero() {
		t.Error("Set did not stamp StartedAt")
	}

	m.Clear()
	if m.Active() {
		t.Error("session still active after Clear")
	}
	// A second Clear is harmless.
	m.Clear()
}

func TestSetRejectsInvalid(t *testing.T) {
	m := NewManager()
	if err := m.Set(&Session{}); err == nil {
		t.Error("expected error for session without uid")
	}
	if err := m.Set(&Session{UID: "u", Email: "not-an-email"}); err == nil {
		t.Error("expected error for malformed email")
	}
	if err := m.Set(nil); err == nil {
		t.Error("expected error for nil session")
	}
}

func TestListenersSeeChanges(t *testing.T) {
	m := NewManager()

	var events []*Session
	m.Subscribe(func(s *Session) { events = append(events, s) })

	if err := m.Set(&Session{UID: "uid-1"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	m.Clear()
	m.Clear() // no session, should not notify

	if len(events) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(events))
	}
	if events[0] == nil || events[0].UID != "uid-1" {
		t.Errorf("first notification wrong: %+v", events[0])
	}
	if events[1] != nil {
		t.Errorf("sign-out notification should carry nil, got %+v", events[1])
	}
}

func TestRequire(t *testing.T) {
	m := NewManager()

	if _, err := m.Require(context.Background()); err == nil {
		t.Error("Require should fail with no session")
	}

	if err := m.Set(&Session{UID: "uid-1"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	s, err := m.Require(context.Background())
	if err != nil {
		t.Fatalf("Require failed: %v", err)
	}
	if s.UID != "uid-1" {
		t.Errorf("Require returned %+v", s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Require(ctx); err == nil {
		t.Error("Require should honor context cancellation")
	}
}
