package session

import (
	"context"
	"errors"
	"sync"
)

// ErrActive is returned when starting while a call is in progress.
var ErrActive = errors.New("session: a call is already active")

// Factory builds a fresh session for each call.
type Factory func() (*Session, error)

// Manager holds at most one live session so the dashboard and the signal
// handler can start and stop calls. The lock is never held across a
// connect; a call being set up is tracked as pending.
type Manager struct {
	factory Factory

	mu      sync.Mutex
	pending *Session
	current *Session
}

// NewManager returns a manager that builds sessions with factory.
func NewManager(factory Factory) *Manager {
	return &Manager{factory: factory}
}

// Start begins a new call unless one is active or connecting. In that case
// it returns the existing session with ErrActive.
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.pending != nil {
		s := m.pending
		m.mu.Unlock()
		return s, ErrActive
	}
	if m.current != nil && m.current.Active() {
		s := m.current
		m.mu.Unlock()
		return s, ErrActive
	}
	s, err := m.factory()
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.pending = s
	m.mu.Unlock()

	err = s.Start(ctx)

	m.mu.Lock()
	m.pending = nil
	if err == nil {
		m.current = s
	}
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return s, nil
}

// Stop ends the current call, or aborts one that is still connecting.
// It reports whether a call was active or connecting.
func (m *Manager) Stop() bool {
	m.mu.Lock()
	pending, current := m.pending, m.current
	m.mu.Unlock()

	stopped := false
	if pending != nil {
		pending.Stop()
		stopped = true
	}
	if current != nil {
		if current.Active() {
			stopped = true
		}
		current.Stop()
	}
	return stopped
}

// Active reports whether a call is in progress.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && m.current.Active()
}

// Connecting reports whether a call is being set up.
func (m *Manager) Connecting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// Current returns the most recent connected session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}
