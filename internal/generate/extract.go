package generate

import (
	"context"
	"fmt"

	"github.com/conorfennell/studydeck/internal/parser"
)

// ExtractGenerator lifts Q:/A: blocks that are already written in the text.
// It needs no model and is used when no API key is configured.
type ExtractGenerator struct{}

// Generate implements Generator.
func (ExtractGenerator) Generate(ctx context.Context, text, _ string) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := parser.ParseString(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse text: %w", err)
	}
	out := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		out = append(out, Candidate{Question: e.Question, Answer: e.Answer, Source: e.Source})
	}
	return out, nil
}
