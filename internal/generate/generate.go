// Package generate turns raw study text into new flashcards.
//
// A Generator proposes candidate question/answer pairs; the Pipeline bounds
// the call, drops blank and duplicate candidates and admits the rest to the
// card store in a single batch.
package generate

import "context"

// Candidate is one proposed card. Source is the excerpt of the study text
// the pair was drawn from and may be empty.
type Candidate struct {
	Question string
	Answer   string
	Source   string
}

// Generator proposes candidates for text about subject.
type Generator interface {
	Generate(ctx context.Context, text, subject string) ([]Candidate, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, text, subject string) ([]Candidate, error)

func (f GeneratorFunc) Generate(ctx context.Context, text, subject string) ([]Candidate, error) {
	return f(ctx, text, subject)
}
