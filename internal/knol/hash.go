// Package knol fingerprints card content so that the same knowledge, however
// it is spaced or capitalised, always maps to the same hash.
package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Normalize cleans each part and joins them.
// Each part is lowercased, trimmed, and has its line endings normalised.
func Normalize(parts ...string) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	out := make([]string, len(parts))
	for i, part := range parts {
		out[i] = normalizePart(part)
	}
	// Joining with a newline keeps "question" and "answer" from
	// collapsing into "questionanswer".
	return strings.Join(out, "\n")
}

// Hash normalizes the parts and returns their SHA-256 hash as a hex string.
func Hash(parts ...string) string {
	normalized := Normalize(parts...)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hashBytes)
}

// CardHash identifies a card by its content.
func CardHash(question, answer, subject string) string {
	return Hash(question, answer, subject)
}

// SpanHash fingerprints the slice of study text a card was derived from.
// Runs of whitespace are collapsed so a re-wrapped copy of a paragraph
// hashes the same as the original.
func SpanHash(subject, span string) string {
	return Hash(subject, strings.Join(strings.Fields(span), " "))
}
