package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/conorfennell/studydeck/internal/domain"
)

// CardSource is the part of the card store a planner reads.
type CardSource interface {
	ListDue(ctx context.Context, userID string, asOf time.Time) ([]domain.Flashcard, error)
	Get(ctx context.Context, userID, cardID string) (domain.Flashcard, error)
}

// Grader records a review outcome for a card.
type Grader interface {
	Grade(ctx context.Context, userID, cardID string, rating domain.Rating) (domain.ReviewState, error)
}

// Config holds the defaults applied when a caller leaves a bound unset.
type Config struct {
	DefaultBudget   time.Duration `koanf:"budget" validate:"gt=0"`
	DefaultMaxCards int           `koanf:"max_cards" validate:"gt=0"`
}

// DefaultConfig is a 15 minute session of at most 20 cards.
func DefaultConfig() Config {
	return Config{
		DefaultBudget:   15 * time.Minute,
		DefaultMaxCards: 20,
	}
}

// Planner builds sessions from the cards that are due.
type Planner struct {
	cards  CardSource
	grader Grader
	config Config
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Planner.
type Option func(*Planner)

// WithClock overrides the time source used to check session budgets.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// NewPlanner creates a planner.
func NewPlanner(cards CardSource, grader Grader, config Config, logger *slog.Logger, opts ...Option) *Planner {
	defaults := DefaultConfig()
	if config.DefaultBudget <= 0 {
		config.DefaultBudget = defaults.DefaultBudget
	}
	if config.DefaultMaxCards <= 0 {
		config.DefaultMaxCards = defaults.DefaultMaxCards
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Planner{
		cards:  cards,
		grader: grader,
		config: config,
		logger: logger,
		now:    time.Now,
		newID:  shortuuid.New,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan takes up to maxCards of the cards due at now, in due order. It fails
// with domain.ErrEmptySession when nothing is due. A budget or maxCards <= 0
// falls back to the configured default.
func (p *Planner) Plan(ctx context.Context, userID string, now time.Time, budget time.Duration, maxCards int) (*Session, error) {
	if budget <= 0 {
		budget = p.config.DefaultBudget
	}
	if maxCards <= 0 {
		maxCards = p.config.DefaultMaxCards
	}

	due, err := p.cards.ListDue(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("list due cards: %w", err)
	}
	if len(due) == 0 {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrEmptySession)
	}
	if len(due) > maxCards {
		due = due[:maxCards]
	}

	ids := make([]string, len(due))
	for i, c := range due {
		ids[i] = c.ID
	}

	s := &Session{
		ID:        p.newID(),
		UserID:    userID,
		StartedAt: now,
		Budget:    budget,
		CardIDs:   ids,
		planner:   p,
		state:     Planned,
		cursor:    -1,
	}
	p.logger.Info("study session planned",
		"session_id", s.ID,
		"user_id", userID,
		"cards", len(ids),
		"budget", budget.String(),
	)
	return s, nil
}
