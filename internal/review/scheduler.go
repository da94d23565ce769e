// Package review grades cards: it applies the spaced-repetition rule and
// records the review in the event log as one atomic step.
package review

import (
	"context"
	"log/slog"
	"time"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/srs"
	"github.com/conorfennell/studydeck/internal/storage"
)

// Scheduler grades cards for their owners.
type Scheduler struct {
	db     *storage.DB
	params *srs.Params
	locks  *userLocks
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source used as the review time.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a scheduler. A nil params uses srs.DefaultParams.
func NewScheduler(db *storage.DB, params *srs.Params, logger *slog.Logger, opts ...Option) *Scheduler {
	if params == nil {
		params = srs.DefaultParams()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		db:     db,
		params: params,
		locks:  newUserLocks(),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Grade records rating for the card at the scheduler's current time.
func (s *Scheduler) Grade(ctx context.Context, userID, cardID string, rating domain.Rating) (domain.ReviewState, error) {
	return s.GradeAt(ctx, userID, cardID, rating, s.now())
}

// GradeAt records rating for the card as if reviewed at now. The new review
// state and its ReviewEvent are written together or not at all.
func (s *Scheduler) GradeAt(ctx context.Context, userID, cardID string, rating domain.Rating, now time.Time) (domain.ReviewState, error) {
	now = now.UTC()
	unlock := s.locks.lock(userID)
	defer unlock()

	card, err := s.db.FindCard(ctx, userID, cardID)
	if err != nil {
		return domain.ReviewState{}, err
	}

	next, err := s.params.Next(card.Review, rating, now)
	if err != nil {
		return domain.ReviewState{}, err
	}

	event := domain.ReviewEvent{
		CardID:            card.ID,
		UserID:            userID,
		Timestamp:         now,
		Grade:             rating,
		ResultingInterval: next.IntervalDays,
	}
	stored, err := s.db.ApplyReview(ctx, card, next, event)
	if err != nil {
		return domain.ReviewState{}, err
	}

	s.logger.Debug("card graded",
		"user_id", userID,
		"card_id", cardID,
		"rating", rating.String(),
		"interval_days", stored.IntervalDays,
		"ease_factor", stored.EaseFactor,
	)
	return stored, nil
}

// Preview returns, for each rating, the state grading the card now would produce.
func (s *Scheduler) Preview(ctx context.Context, userID, cardID string) (map[domain.Rating]domain.ReviewState, error) {
	card, err := s.db.FindCard(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	return s.params.Preview(card.Review, s.now().UTC()), nil
}

// History returns the review events of one card, oldest first.
func (s *Scheduler) History(ctx context.Context, userID, cardID string) ([]domain.ReviewEvent, error) {
	if _, err := s.db.FindCard(ctx, userID, cardID); err != nil {
		return nil, err
	}
	return s.db.ListCardEvents(ctx, userID, cardID)
}
