package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/conorfennell/studydeck/internal/cards"
	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/knol"
	"github.com/conorfennell/studydeck/internal/validate"
)

// Config bounds a generation run.
type Config struct {
	Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxTextLength int           `koanf:"max_text" validate:"gt=0"`
	// Rate is the sustained number of runs per second allowed per user.
	// Zero disables rate limiting.
	Rate  float64 `koanf:"rate" validate:"gte=0"`
	Burst int     `koanf:"burst" validate:"gte=0"`
}

// DefaultConfig allows one run every ten seconds per user with a burst of 3.
func DefaultConfig() Config {
	return Config{
		Timeout:       60 * time.Second,
		MaxTextLength: 50000,
		Rate:          0.1,
		Burst:         3,
	}
}

// CardCreator admits a batch of cards atomically.
type CardCreator interface {
	CreateBatch(ctx context.Context, userID string, batch []cards.NewCard) ([]domain.Flashcard, error)
}

// Pipeline runs a Generator and admits its output.
type Pipeline struct {
	generator Generator
	cards     CardCreator
	config    Config
	logger    *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewPipeline creates a pipeline that stores accepted cards in store.
func NewPipeline(generator Generator, store CardCreator, config Config, logger *slog.Logger) *Pipeline {
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxTextLength <= 0 {
		config.MaxTextLength = defaults.MaxTextLength
	}
	if config.Rate > 0 && config.Burst <= 0 {
		config.Burst = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		generator: generator,
		cards:     store,
		config:    config,
		logger:    logger,
		limiters:  make(map[string]*rate.Limiter),
	}
}

type request struct {
	UserID  string `validate:"notblank"`
	Text    string `validate:"notblank"`
	Subject string `validate:"max=100"`
}

// Run generates cards from text and stores the ones that survive filtering.
// A run whose candidates are all rejected returns an empty slice and no error.
func (p *Pipeline) Run(ctx context.Context, userID, text, subject string) ([]domain.Flashcard, error) {
	subject = strings.TrimSpace(subject)
	if err := validate.Struct(request{UserID: userID, Text: text, Subject: subject}); err != nil {
		return nil, err
	}
	if err := validate.Var("text", text, fmt.Sprintf("max=%d", p.config.MaxTextLength)); err != nil {
		return nil, err
	}
	if !p.allow(userID) {
		return nil, fmt.Errorf("generate for user %s: %w", userID, domain.ErrRateLimited)
	}

	genCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	started := time.Now()
	candidates, err := p.generate(genCtx, text, subject)
	if err != nil {
		p.logger.Warn("generation failed", "user_id", userID, "error", err, "duration", time.Since(started))
		if errors.Is(err, domain.ErrGenerationFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates produced", domain.ErrGenerationFailed)
	}

	batch := admit(candidates, subject)
	rejected := len(candidates) - len(batch)
	if len(batch) == 0 {
		p.logger.Info("all generated candidates rejected", "user_id", userID, "candidates", len(candidates))
		return []domain.Flashcard{}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	created, err := p.cards.CreateBatch(ctx, userID, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to admit generated cards: %w", err)
	}

	p.logger.Info("cards generated",
		"user_id", userID,
		"subject", subject,
		"candidates", len(candidates),
		"admitted", len(created),
		"rejected", rejected,
		"duration", time.Since(started),
	)
	return created, nil
}

type generated struct {
	candidates []Candidate
	err        error
}

// generate runs the generator but returns as soon as ctx is done, even if
// the generator ignores ctx. Late results are discarded.
func (p *Pipeline) generate(ctx context.Context, text, subject string) ([]Candidate, error) {
	done := make(chan generated, 1)
	go func() {
		candidates, err := p.generator.Generate(ctx, text, subject)
		done <- generated{candidates: candidates, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return res.candidates, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// admit drops blank candidates and those whose source span was already seen
// in this run, preserving the generator's order.
func admit(candidates []Candidate, subject string) []cards.NewCard {
	seen := make(map[string]bool, len(candidates))
	batch := make([]cards.NewCard, 0, len(candidates))
	for _, c := range candidates {
		q, a := strings.TrimSpace(c.Question), strings.TrimSpace(c.Answer)
		if q == "" || a == "" {
			continue
		}
		span := strings.TrimSpace(c.Source)
		if span == "" {
			span = q + "\n" + a
		}
		hash := knol.SpanHash(subject, span)
		if seen[hash] {
			continue
		}
		seen[hash] = true
		batch = append(batch, cards.NewCard{
			Subject:    subject,
			Question:   q,
			Answer:     a,
			SourceHash: hash,
		})
	}
	return batch
}

func (p *Pipeline) allow(userID string) bool {
	if p.config.Rate <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	lim, ok := p.limiters[userID]
	if !ok {
		p.pruneLimiters(time.Now())
		lim = rate.NewLimiter(rate.Limit(p.config.Rate), p.config.Burst)
		p.limiters[userID] = lim
	}
	return lim.Allow()
}

// pruneLimiters forgets users whose bucket has refilled completely; a fresh
// limiter behaves identically. Callers hold p.mu.
func (p *Pipeline) pruneLimiters(now time.Time) {
	for user, lim := range p.limiters {
		if lim.TokensAt(now) >= float64(p.config.Burst) {
			delete(p.limiters, user)
		}
	}
}
