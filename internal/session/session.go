// Package session plans and runs bounded study sessions over due cards.
//
// A Session moves Planned -> InProgress -> Complete. Next presents a card and
// RecordAnswer grades it; Next refuses to move on while the presented card is
// still ungraded. Complete is terminal.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/conorfennell/studydeck/internal/domain"
)

// State is the lifecycle stage of a Session.
type State int

const (
	Planned State = iota + 1
	InProgress
	Complete
)

func (s State) String() string {
	switch s {
	case Planned:
		return "planned"
	case InProgress:
		return "in_progress"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Session is one study run. Its methods must be called by a single client;
// overlapping calls fail with domain.ErrConcurrencyConflict.
type Session struct {
	ID        string
	UserID    string
	StartedAt time.Time
	Budget    time.Duration
	CardIDs   []string

	planner *Planner
	busy    sync.Mutex

	mu       sync.Mutex // guards the fields below for Snapshot readers
	state    State
	cursor   int
	graded   bool
	answered int
}

// Snapshot is a read-only view of a session's progress.
type Snapshot struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	State     State         `json:"state"`
	StartedAt time.Time     `json:"started_at"`
	Budget    time.Duration `json:"budget_ns"`
	Total     int           `json:"total"`
	Position  int           `json:"position"` // 1-based index of the presented card, 0 before the first.
	Answered  int           `json:"answered"`
	Remaining int           `json:"remaining"`
}

// Next advances to the next card. It returns false when there are no more
// cards, or the duration budget is spent, at which point the session becomes
// Complete. The previously presented card must have been graded first.
func (s *Session) Next(ctx context.Context) (domain.Flashcard, bool, error) {
	if !s.busy.TryLock() {
		return domain.Flashcard{}, false, fmt.Errorf("session %s: %w", s.ID, domain.ErrConcurrencyConflict)
	}
	defer s.busy.Unlock()

	s.mu.Lock()
	state, cursor, graded := s.state, s.cursor, s.graded
	s.mu.Unlock()

	switch {
	case state == Complete:
		return domain.Flashcard{}, false, fmt.Errorf("session %s: %w", s.ID, domain.ErrSessionAlreadyComplete)
	case state == InProgress && cursor >= 0 && !graded:
		return domain.Flashcard{}, false, fmt.Errorf("session %s card %d: %w", s.ID, cursor+1, domain.ErrUngradedCard)
	}

	s.setState(InProgress)

	if s.Budget > 0 && state == InProgress && !s.planner.now().Before(s.StartedAt.Add(s.Budget)) {
		s.complete("budget spent")
		return domain.Flashcard{}, false, nil
	}

	for next := cursor + 1; next < len(s.CardIDs); next++ {
		card, err := s.planner.cards.Get(ctx, s.UserID, s.CardIDs[next])
		if errors.Is(err, domain.ErrNotFound) {
			// Deleted since the session was planned.
			continue
		}
		if err != nil {
			return domain.Flashcard{}, false, err
		}
		s.mu.Lock()
		s.cursor = next
		s.graded = false
		s.mu.Unlock()
		return card, true, nil
	}

	s.mu.Lock()
	s.cursor = len(s.CardIDs)
	s.mu.Unlock()
	s.complete("all cards presented")
	return domain.Flashcard{}, false, nil
}

// RecordAnswer grades the presented card through the scheduler. If the card
// was deleted after being presented it returns domain.ErrNotFound and the
// session skips it.
func (s *Session) RecordAnswer(ctx context.Context, rating domain.Rating) (domain.ReviewState, error) {
	if !s.busy.TryLock() {
		return domain.ReviewState{}, fmt.Errorf("session %s: %w", s.ID, domain.ErrConcurrencyConflict)
	}
	defer s.busy.Unlock()

	s.mu.Lock()
	state, cursor, graded := s.state, s.cursor, s.graded
	s.mu.Unlock()

	switch {
	case state == Complete:
		return domain.ReviewState{}, fmt.Errorf("session %s: %w", s.ID, domain.ErrSessionAlreadyComplete)
	case state == Planned || cursor < 0:
		return domain.ReviewState{}, fmt.Errorf("session %s: %w", s.ID, domain.ErrNoCurrentCard)
	case graded:
		return domain.ReviewState{}, fmt.Errorf("session %s card %d: %w", s.ID, cursor+1, domain.ErrAlreadyGraded)
	}

	next, err := s.planner.grader.Grade(ctx, s.UserID, s.CardIDs[cursor], rating)
	if errors.Is(err, domain.ErrNotFound) {
		// Deleted while presented: nothing left to grade, so let Next move on.
		s.mu.Lock()
		s.graded = true
		s.mu.Unlock()
		return domain.ReviewState{}, err
	}
	if err != nil {
		return domain.ReviewState{}, err
	}

	s.mu.Lock()
	s.graded = true
	s.answered++
	s.mu.Unlock()
	return next, nil
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the session's current progress.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	position := 0
	if s.cursor >= 0 && s.cursor < len(s.CardIDs) {
		position = s.cursor + 1
	}
	remaining := len(s.CardIDs) - position
	if s.state == Complete {
		remaining = 0
	}
	return Snapshot{
		ID:        s.ID,
		UserID:    s.UserID,
		State:     s.state,
		StartedAt: s.StartedAt,
		Budget:    s.Budget,
		Total:     len(s.CardIDs),
		Position:  position,
		Answered:  s.answered,
		Remaining: remaining,
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) complete(reason string) {
	s.setState(Complete)
	s.planner.logger.Info("study session complete",
		"session_id", s.ID,
		"user_id", s.UserID,
		"answered", s.Snapshot().Answered,
		"total", len(s.CardIDs),
		"reason", reason,
	)
}
