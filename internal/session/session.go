// Package session tracks the signed-in account for a running process.
//
// A Session carries the identity fields the rest of the app scopes its
// queries and subscriptions by. There is at most one active session; a
// nil session means the app runs in local-only mode and never touches
// the remote backend.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Session identifies a signed-in account.
type Session struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string

	// StartedAt records when this session was established locally.
	StartedAt time.Time
}

// Validate checks that the session carries a usable identity.
func (s *Session) Validate() error {
	if s.UID == "" {
		return fmt.Errorf("session is missing a uid")
	}
	if s.Email != "" && !strings.Contains(s.Email, "@") {
		return fmt.Errorf("session email %q is not an email address", s.Email)
	}
	return nil
}

// Listener is notified when the active session changes. A nil session
// means sign-out; listeners use it to tear down per-account state such
// as live subscriptions.
type Listener func(s *Session)

// Manager holds the process-wide active session.
//
// All methods are safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	current   *Session
	listeners []Listener
}

// NewManager returns a manager with no active session.
func NewManager() *Manager {
	return &Manager{}
}

// Current returns the active session, or nil when signed out.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Active reports whether a session is established.
func (m *Manager) Active() bool {
	return m.Current() != nil
}

// Set installs s as the active session and notifies listeners.
func (m *Manager) Set(s *Session) error {
	if s == nil {
		return fmt.Errorf("use Clear to end a session")
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}

	m.mu.Lock()
	m.current = s
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
	return nil
}

// Clear ends the active session. Clearing an already-cleared manager
// is a no-op and notifies nobody.
func (m *Manager) Clear() {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return
	}
	m.current = nil
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(nil)
	}
}

// Subscribe registers a listener for session changes. Listeners are
// called synchronously from Set and Clear, in registration order.
func (m *Manager) Subscribe(fn Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Require returns the active session or an error suitable for
// operations that cannot run in local-only mode.
func (m *Manager) Require(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := m.Current()
	if s == nil {
		return nil, fmt.Errorf("no active session: sign in first")
	}
	return s, nil
}
