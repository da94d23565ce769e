package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/conorfennell/studydeck/internal/domain"
)

// staleAfter is how long past its budget an unfinished session is kept.
const staleAfter = time.Hour

// Manager keeps the live sessions of all users in memory.
type Manager struct {
	planner *Planner

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty registry backed by planner.
func NewManager(planner *Planner) *Manager {
	return &Manager{
		planner:  planner,
		sessions: make(map[string]*Session),
	}
}

// Start plans a new session for userID and registers it.
func (m *Manager) Start(ctx context.Context, userID string, budget time.Duration, maxCards int) (*Session, error) {
	now := m.planner.now()
	m.sweep(now)

	s, err := m.planner.Plan(ctx, userID, now, budget, maxCards)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns a live session owned by userID.
func (m *Manager) Get(userID, sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || s.UserID != userID {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	return s, nil
}

// Abandon drops a live session owned by userID. The web layer also calls it
// once a session reports completion.
func (m *Manager) Abandon(userID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || s.UserID != userID {
		return fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	delete(m.sessions, sessionID)
	return nil
}

// Len reports how many sessions are live.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// sweep drops complete sessions and sessions long past their budget.
func (m *Manager) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		if s.State() == Complete || now.After(s.StartedAt.Add(s.Budget+staleAfter)) {
			delete(m.sessions, id)
		}
	}
}
