package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/parser"
)

// AIConfig holds the chat completion provider settings.
type AIConfig struct {
	APIKey     string `koanf:"api_key"`
	BaseURL    string `koanf:"base_url"`
	Model      string `koanf:"model"`
	MaxRetries int    `koanf:"max_retries" validate:"gte=0"`
}

// DefaultAIConfig returns the provider defaults. APIKey is left empty.
func DefaultAIConfig() AIConfig {
	return AIConfig{
		BaseURL:    "https://api.openai.com/v1",
		Model:      "gpt-4o-mini",
		MaxRetries: 3,
	}
}

const systemPrompt = `You write flashcards for spaced-repetition study.
For each fact worth remembering in the user's text, emit one block:

Q: <a question answerable from the text>
A: <a short answer>
S: <the sentence or sentences of the text the card is drawn from, copied verbatim>
---

Emit only blocks in this format. Do not number them or add commentary.`

// OpenAIGenerator asks an OpenAI-compatible chat model for cards.
type OpenAIGenerator struct {
	client  *openai.Client
	config  AIConfig
	logger  *slog.Logger
	backoff time.Duration
}

// NewOpenAIGenerator creates a generator for cfg. Unset fields fall back to
// DefaultAIConfig.
func NewOpenAIGenerator(cfg AIConfig, logger *slog.Logger) *OpenAIGenerator {
	defaults := DefaultAIConfig()
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAIGenerator{
		client:  openai.NewClientWithConfig(clientConfig),
		config:  cfg,
		logger:  logger,
		backoff: time.Second,
	}
}

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, text, subject string) ([]Candidate, error) {
	user := text
	if subject != "" {
		user = "Subject: " + subject + "\n\n" + text
	}

	var content string
	err := g.doWithRetry(ctx, func() error {
		resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: g.config.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("empty chat response")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: chat completion: %w", domain.ErrGenerationFailed, err)
	}

	entries, err := parser.ParseString(content)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable model output: %w", domain.ErrGenerationFailed, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: model output contained no cards", domain.ErrGenerationFailed)
	}

	out := make([]Candidate, len(entries))
	for i, e := range entries {
		out[i] = Candidate{Question: e.Question, Answer: e.Answer, Source: e.Source}
	}
	return out, nil
}

// doWithRetry runs fn until it succeeds, waiting backoff*2^attempt between
// attempts.
func (g *OpenAIGenerator) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < g.config.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < g.config.MaxRetries-1 {
			wait := time.Duration(math.Pow(2, float64(attempt))) * g.backoff
			g.logger.Debug("chat completion failed, retrying",
				"attempt", attempt+1,
				"wait_time", wait,
				"error", lastErr)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}
