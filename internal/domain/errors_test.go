package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestSentinelMessages(t *testing.T) {
	all := []error{
		ErrValidation, ErrNotFound, ErrGenerationFailed, ErrRateLimited,
		ErrEmptySession, ErrSessionAlreadyComplete, ErrUngradedCard,
		ErrNoCurrentCard, ErrAlreadyGraded, ErrConcurrencyConflict, ErrInvalidRating,
	}
	for _, err := range all {
		if !strings.HasPrefix(err.Error(), "studydeck: ") {
			t.Errorf("%q lacks the studydeck: prefix", err)
		}
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		err       error
		protocol  bool
		retryable bool
	}{
		{fmt.Errorf("session s1: %w", ErrUngradedCard), true, false},
		{ErrEmptySession, true, false},
		{ErrAlreadyGraded, true, false},
		{fmt.Errorf("generate: %w", ErrGenerationFailed), false, true},
		{ErrConcurrencyConflict, false, true},
		{ErrRateLimited, false, true},
		{ErrNotFound, false, false},
		{ErrInvalidRating, false, false},
	}
	for _, tt := range tests {
		if got := IsSessionProtocol(tt.err); got != tt.protocol {
			t.Errorf("IsSessionProtocol(%v) = %v, want %v", tt.err, got, tt.protocol)
		}
		if got := IsRetryable(tt.err); got != tt.retryable {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.retryable)
		}
	}
}

func TestInvalidRatingIsValidationError(t *testing.T) {
	err := fmt.Errorf("grade: %w", ErrInvalidRating)
	if !errors.Is(err, ErrValidation) {
		t.Error("wrapped ErrInvalidRating should match ErrValidation")
	}
	if errors.Is(ErrValidation, ErrInvalidRating) {
		t.Error("ErrValidation should not match ErrInvalidRating")
	}
}

func TestNewReviewState(t *testing.T) {
	created := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	s := NewReviewState(created)
	if s.EaseFactor != DefaultEaseFactor || s.IntervalDays != 0 || s.Repetitions != 0 {
		t.Errorf("NewReviewState = %+v, want default ease and zero counters", s)
	}
	if !s.IsNew() {
		t.Error("new state should report IsNew")
	}
	card := Flashcard{Review: s}
	if !card.IsDue(created) {
		t.Error("a new card should be due at its creation instant")
	}
	if card.IsDue(created.Add(-time.Second)) {
		t.Error("a card should not be due before its due time")
	}
	if !(CardPatch{}).IsEmpty() {
		t.Error("zero CardPatch should be empty")
	}
}
