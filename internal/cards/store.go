// Package cards is the authoritative store of a user's flashcards.
//
// Every operation is scoped by userID: a card owned by someone else behaves
// exactly like a card that does not exist. Review state is read here but only
// ever written by the review scheduler.
package cards

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/storage"
	"github.com/conorfennell/studydeck/internal/validate"
)

// NewCard is the owner-supplied content of a card about to be created.
type NewCard struct {
	Subject    string `validate:"max=100"`
	Question   string `validate:"notblank"`
	Answer     string `validate:"notblank"`
	SourceHash string `validate:"-"`
}

type owner struct {
	UserID string `validate:"notblank"`
}

// Store provides CRUD over flashcards.
type Store struct {
	db     *storage.DB
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides how card IDs are generated.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// NewStore creates a card store over db.
func NewStore(db *storage.DB, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		db:     db,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying database to components that share it.
func (s *Store) DB() *storage.DB {
	return s.db
}

// Create stores a new card for userID. The card is due immediately.
func (s *Store) Create(ctx context.Context, userID, subject, question, answer string) (domain.Flashcard, error) {
	created, err := s.CreateBatch(ctx, userID, []NewCard{{Subject: subject, Question: question, Answer: answer}})
	if err != nil {
		return domain.Flashcard{}, err
	}
	return created[0], nil
}

// CreateBatch validates every card first and then stores them all in one
// transaction. If any card is invalid or the write fails, nothing is stored.
func (s *Store) CreateBatch(ctx context.Context, userID string, batch []NewCard) ([]domain.Flashcard, error) {
	if err := validate.Struct(owner{UserID: userID}); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	cards := make([]domain.Flashcard, 0, len(batch))
	for i, nc := range batch {
		nc = nc.normalized()
		if err := validate.Struct(nc); err != nil {
			if len(batch) > 1 {
				return nil, fmt.Errorf("card %d: %w", i, err)
			}
			return nil, err
		}
		cards = append(cards, domain.Flashcard{
			ID:         s.newID(),
			UserID:     userID,
			Subject:    nc.Subject,
			Question:   nc.Question,
			Answer:     nc.Answer,
			SourceHash: nc.SourceHash,
			CreatedAt:  now,
			Review:     domain.NewReviewState(now),
		})
	}

	if err := s.db.InsertCards(ctx, cards); err != nil {
		return nil, err
	}
	s.logger.Debug("cards created", "user_id", userID, "count", len(cards))
	return cards, nil
}

// Get returns the card, or ErrNotFound if it is absent or owned by another user.
func (s *Store) Get(ctx context.Context, userID, cardID string) (domain.Flashcard, error) {
	return s.db.FindCard(ctx, userID, cardID)
}

// Update applies a partial change to the question, answer or subject.
func (s *Store) Update(ctx context.Context, userID, cardID string, patch domain.CardPatch) (domain.Flashcard, error) {
	card, err := s.db.FindCard(ctx, userID, cardID)
	if err != nil {
		return domain.Flashcard{}, err
	}
	if patch.IsEmpty() {
		return card, nil
	}

	edited := NewCard{Subject: card.Subject, Question: card.Question, Answer: card.Answer}
	if patch.Subject != nil {
		edited.Subject = *patch.Subject
	}
	if patch.Question != nil {
		edited.Question = *patch.Question
	}
	if patch.Answer != nil {
		edited.Answer = *patch.Answer
	}
	edited = edited.normalized()
	if err := validate.Struct(edited); err != nil {
		return domain.Flashcard{}, err
	}

	card.Subject = edited.Subject
	card.Question = edited.Question
	card.Answer = edited.Answer
	if err := s.db.UpdateCardContent(ctx, card); err != nil {
		return domain.Flashcard{}, err
	}
	return card, nil
}

// Delete removes the card and its review history. Deleting a missing card succeeds.
func (s *Store) Delete(ctx context.Context, userID, cardID string) error {
	if err := s.db.DeleteCard(ctx, userID, cardID); err != nil {
		return err
	}
	s.logger.Debug("card deleted", "user_id", userID, "card_id", cardID)
	return nil
}

// ListDue returns cards with DueAt <= asOf, most overdue first, ties broken
// by creation time.
func (s *Store) ListDue(ctx context.Context, userID string, asOf time.Time) ([]domain.Flashcard, error) {
	return s.db.ListDueCards(ctx, userID, asOf, 0)
}

// List returns every card of the user, optionally only those of one subject.
func (s *Store) List(ctx context.Context, userID, subject string) ([]domain.Flashcard, error) {
	return s.db.ListCards(ctx, userID, strings.TrimSpace(subject))
}

// SourceHashes returns the source hashes of the user's existing cards.
func (s *Store) SourceHashes(ctx context.Context, userID string) (map[string]bool, error) {
	return s.db.SourceHashes(ctx, userID)
}

func (nc NewCard) normalized() NewCard {
	nc.Subject = strings.TrimSpace(nc.Subject)
	nc.Question = strings.TrimSpace(nc.Question)
	nc.Answer = strings.TrimSpace(nc.Answer)
	return nc
}
