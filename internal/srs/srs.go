// Package srs implements the SM-2 family spaced-repetition update rule.
//
// Next is a pure function of the current review state, the rating and the
// review time: it reads no clock and holds no state, so the same inputs
// always produce the same schedule.
package srs

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/studydeck/internal/domain"
)

const day = 24 * time.Hour

// Params holds the tunables of the update rule.
type Params struct {
	InitialEase     float64 `koanf:"initial_ease" validate:"gte=1.3"`
	MinEase         float64 `koanf:"min_ease" validate:"gt=0"`
	AgainPenalty    float64 `koanf:"again_penalty" validate:"gte=0"`
	HardDelta       float64 `koanf:"hard_delta" validate:"lte=0"`
	GoodDelta       float64 `koanf:"good_delta"`
	EasyDelta       float64 `koanf:"easy_delta" validate:"gte=0"`
	ResetInterval   int     `koanf:"reset_interval" validate:"gte=1"`
	FirstInterval   int     `koanf:"first_interval" validate:"gte=1"`
	MaximumInterval int     `koanf:"maximum_interval" validate:"gte=1"`
}

// DefaultParams returns the classic SM-2 style defaults.
func DefaultParams() *Params {
	return &Params{
		InitialEase:     domain.DefaultEaseFactor,
		MinEase:         domain.MinEaseFactor,
		AgainPenalty:    0.20,
		HardDelta:       -0.15,
		GoodDelta:       0,
		EasyDelta:       0.15,
		ResetInterval:   1,
		FirstInterval:   1,
		MaximumInterval: 36500,
	}
}

// Next calculates the review state that results from rating the card at now.
func (p *Params) Next(current domain.ReviewState, rating domain.Rating, now time.Time) (domain.ReviewState, error) {
	if !rating.IsValid() {
		return domain.ReviewState{}, fmt.Errorf("%w: %d", domain.ErrInvalidRating, int(rating))
	}

	next := current
	ease := current.EaseFactor
	if ease == 0 {
		ease = p.InitialEase
	}

	if rating == domain.Again {
		next.Repetitions = 0
		next.IntervalDays = p.ResetInterval
		next.EaseFactor = p.clampEase(ease - p.AgainPenalty)
	} else {
		next.Repetitions = current.Repetitions + 1
		next.EaseFactor = p.clampEase(ease + p.easeDelta(rating))
		next.IntervalDays = p.nextInterval(current.IntervalDays, next.EaseFactor, next.Repetitions)
	}

	reviewed := now
	next.LastReviewedAt = &reviewed
	next.DueAt = NextDueDate(now, next.IntervalDays)
	return next, nil
}

// Preview returns the state each rating would produce, for showing the
// learner what each answer button means.
func (p *Params) Preview(current domain.ReviewState, now time.Time) map[domain.Rating]domain.ReviewState {
	out := make(map[domain.Rating]domain.ReviewState, 4)
	for _, r := range domain.Ratings() {
		// Ratings() only yields valid ratings.
		s, _ := p.Next(current, r, now)
		out[r] = s
	}
	return out
}

func (p *Params) easeDelta(rating domain.Rating) float64 {
	switch rating {
	case domain.Hard:
		return p.HardDelta
	case domain.Easy:
		return p.EasyDelta
	default:
		return p.GoodDelta
	}
}

func (p *Params) clampEase(ease float64) float64 {
	return math.Max(p.MinEase, ease)
}

// nextInterval applies the growth rule for a successful review.
// The first success in a run always gets FirstInterval regardless of ease.
func (p *Params) nextInterval(previous int, ease float64, repetitions int) int {
	if repetitions <= 1 {
		return p.FirstInterval
	}
	if previous < 1 {
		previous = 1
	}
	days := int(math.Round(float64(previous) * ease))
	days = max(days, 1)
	return min(days, p.MaximumInterval)
}

// NextDueDate returns the moment a card reviewed at reviewedAt becomes due again.
func NextDueDate(reviewedAt time.Time, intervalDays int) time.Time {
	return reviewedAt.Add(time.Duration(intervalDays) * day)
}
