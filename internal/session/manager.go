package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mrzscan/internal/logger"
)

// Manager holds the active sessions of a host.
type Manager struct {
	opts        Options
	idleTimeout time.Duration
	clock       func() time.Time
	log         zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager. Sessions idle longer than idleTimeout are
// removed by Sweep; a zero timeout disables sweeping.
func NewManager(opts Options, idleTimeout time.Duration) *Manager {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	opts.Clock = clock

	return &Manager{
		opts:        opts,
		idleTimeout: idleTimeout,
		clock:       clock,
		log:         logger.WithComponent("session-manager"),
		sessions:    make(map[string]*Session),
	}
}

// Create starts a new session with a random ID.
func (m *Manager) Create() *Session {
	s := New(uuid.NewString(), m.opts)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.log.Info().Str("session_id", s.ID()).Int("active", n).Msg("Session created")
	return s
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close closes and removes the session with the given ID.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	m.log.Info().Str("session_id", id).Msg("Session closed")
	return nil
}

// Len returns the number of active sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions that have not processed a frame within the idle
// timeout and returns how many were removed.
func (m *Manager) Sweep() int {
	if m.idleTimeout <= 0 {
		return 0
	}

	cutoff := m.clock().Add(-m.idleTimeout)

	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastActivity().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
		m.log.Info().Str("session_id", s.ID()).Msg("Idle session evicted")
	}
	return len(expired)
}

// Run calls Sweep every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.log.Debug().Int("evicted", n).Int("active", m.Len()).Msg("Session sweep finished")
			}
		}
	}
}

// CloseAll closes every session, used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
