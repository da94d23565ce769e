package domain

import "time"

// Default review state values for a card that has never been reviewed.
const (
	DefaultEaseFactor = 2.5
	MinEaseFactor     = 1.3
)

// MaxSubjectLength bounds Flashcard.Subject, counted in characters.
const MaxSubjectLength = 100

// Flashcard is a single question-answer entry owned by one user.
type Flashcard struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	Subject    string      `json:"subject"`
	Question   string      `json:"question"`
	Answer     string      `json:"answer"`
	SourceHash string      `json:"source_hash,omitempty"` // empty for cards written by hand.
	CreatedAt  time.Time   `json:"created_at"`
	Review     ReviewState `json:"review"`
}

// ReviewState is the scheduling state embedded in every card.
// It is only ever written by the scheduler.
type ReviewState struct {
	EaseFactor     float64    `json:"ease_factor"`
	IntervalDays   int        `json:"interval_days"` // 0 means never reviewed.
	Repetitions    int        `json:"repetitions"`
	DueAt          time.Time  `json:"due_at"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
	Version        int64      `json:"-"`
}

// NewReviewState returns the state of a card created at createdAt: due immediately.
func NewReviewState(createdAt time.Time) ReviewState {
	return ReviewState{
		EaseFactor: DefaultEaseFactor,
		DueAt:      createdAt,
	}
}

// IsNew reports whether the card has never been reviewed.
func (s ReviewState) IsNew() bool {
	return s.LastReviewedAt == nil
}

// IsDue reports whether the card may be studied at asOf.
func (c Flashcard) IsDue(asOf time.Time) bool {
	return !c.Review.DueAt.After(asOf)
}

// ReviewEvent records a single review of a card. Events are never mutated.
type ReviewEvent struct {
	ID                int64     `json:"id"`
	CardID            string    `json:"card_id"`
	UserID            string    `json:"user_id"`
	Timestamp         time.Time `json:"timestamp"`
	Grade             Rating    `json:"grade"`
	ResultingInterval int       `json:"resulting_interval"`
}

// CardPatch carries the owner-editable fields of a card. Nil fields are left unchanged.
type CardPatch struct {
	Subject  *string `json:"subject,omitempty"`
	Question *string `json:"question,omitempty"`
	Answer   *string `json:"answer,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p CardPatch) IsEmpty() bool {
	return p.Subject == nil && p.Question == nil && p.Answer == nil
}
