package live

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrSessionActive = errors.New("session already active")
	ErrNoSession     = errors.New("no active session")
)

// Manager owns at most one controller per user and is the single place
// controllers are created and torn down.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*Controller
}

func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Controller),
	}
}

// Start creates a controller for the user. An ended controller that was
// never torn down is replaced; a live one blocks the new session.
func (m *Manager) Start(userID string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[userID]; ok {
		if existing.Phase() != PhaseDisconnected {
			return nil, ErrSessionActive
		}
		existing.Close()
	}
	c := NewController(m.cfg)
	m.sessions[userID] = c
	return c, nil
}

func (m *Manager) Get(userID string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[userID]
	if !ok {
		return nil, ErrNoSession
	}
	return c, nil
}

// Teardown closes the user's controller and forgets it.
func (m *Manager) Teardown(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[userID]
	if !ok {
		return ErrNoSession
	}
	c.Close()
	delete(m.sessions, userID)
	return nil
}

// SweepIdle ends and removes sessions with no user activity for longer
// than maxIdle. It returns the number of sessions removed.
func (m *Manager) SweepIdle(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for userID, c := range m.sessions {
		if c.LastActive().After(cutoff) {
			continue
		}
		if c.Phase() != PhaseDisconnected {
			_, _ = c.End()
		}
		c.Close()
		delete(m.sessions, userID)
		removed++
	}
	return removed
}
