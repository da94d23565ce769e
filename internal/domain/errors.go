package domain

import "errors"

// Sentinel errors shared by every studydeck component.
// Callers check them with errors.Is; components wrap them with context.
var (
	ErrValidation       = errors.New("studydeck: validation failed")
	ErrNotFound         = errors.New("studydeck: not found")
	ErrGenerationFailed = errors.New("studydeck: generation failed")
	ErrRateLimited      = errors.New("studydeck: rate limited")

	ErrEmptySession           = errors.New("studydeck: nothing due")
	ErrSessionAlreadyComplete = errors.New("studydeck: session already complete")
	ErrUngradedCard           = errors.New("studydeck: previous card not graded")
	ErrNoCurrentCard          = errors.New("studydeck: no card presented")
	ErrAlreadyGraded          = errors.New("studydeck: card already graded")

	ErrConcurrencyConflict = errors.New("studydeck: concurrent modification")
)

// ErrInvalidRating is a validation failure, so errors.Is(err, ErrValidation) holds for it.
var ErrInvalidRating = &invalidRating{}

type invalidRating struct{}

func (*invalidRating) Error() string { return "studydeck: invalid rating" }

func (*invalidRating) Is(target error) bool { return target == ErrValidation }

// IsSessionProtocol reports whether err is a misuse of the study session state machine.
func IsSessionProtocol(err error) bool {
	return errors.Is(err, ErrEmptySession) ||
		errors.Is(err, ErrSessionAlreadyComplete) ||
		errors.Is(err, ErrUngradedCard) ||
		errors.Is(err, ErrNoCurrentCard) ||
		errors.Is(err, ErrAlreadyGraded)
}

// IsRetryable reports whether the failed operation may succeed if simply repeated.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGenerationFailed) ||
		errors.Is(err, ErrConcurrencyConflict) ||
		errors.Is(err, ErrRateLimited)
}
