package parser

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name            string
		input           string
		expectedEntries int
		expectedQ       string
		expectedA       string
		expectedC       string
		expectedS       string
	}{
		{
			name:            "Simple Q&A",
			input:           "Q: What is the capital of France?\nA: Paris",
			expectedEntries: 1,
			expectedQ:       "What is the capital of France?",
			expectedA:       "Paris",
		},
		{
			name:            "Simple Q, A, and C",
			input:           "Q: What is 1+1?\nA: 2\nC: Basic arithmetic",
			expectedEntries: 1,
			expectedQ:       "What is 1+1?",
			expectedA:       "2",
			expectedC:       "Basic arithmetic",
		},
		{
			name: "Multiline Answer",
			input: `
Q: What are the primary colors?
A: Red
Blue
Yellow
`,
			expectedEntries: 1,
			expectedQ:       "What are the primary colors?",
			expectedA:       "Red\nBlue\nYellow",
		},
		{
			name: "Two Entries",
			input: `
Q: First question
A: First answer

Q: Second question
A: Second answer
`,
			expectedEntries: 2,
		},
		{
			name: "Entry with source excerpt",
			input: `Q: What do mitochondria produce?
A: ATP
S: Mitochondria produce ATP
through cellular respiration.
---
`,
			expectedEntries: 1,
			expectedQ:       "What do mitochondria produce?",
			expectedA:       "ATP",
			expectedS:       "Mitochondria produce ATP\nthrough cellular respiration.",
		},
		{
			name:            "Windows line endings",
			input:           "Q: Ping?\r\nA: Pong\r\n",
			expectedEntries: 1,
			expectedQ:       "Ping?",
			expectedA:       "Pong",
		},
		{
			name:            "No entries, just text",
			input:           "This is a file with no questions.",
			expectedEntries: 0,
		},
		{
			name:            "Answer without question is dropped",
			input:           "A: orphan answer\n---\nQ: kept\nA: yes",
			expectedEntries: 1,
			expectedQ:       "kept",
			expectedA:       "yes",
		},
		{
			name:            "Prefixes with no space",
			input:           "Q:Question\nA:Answer",
			expectedEntries: 1,
			expectedQ:       "Question",
			expectedA:       "Answer",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := Parse(strings.NewReader(tc.input))
			if err != nil {
				t.Fatalf("Parse() returned an unexpected error: %v", err)
			}

			if len(entries) != tc.expectedEntries {
				t.Fatalf("Expected %d entries, but got %d", tc.expectedEntries, len(entries))
			}

			if tc.expectedEntries == 1 {
				e := entries[0]
				if e.Question != tc.expectedQ {
					t.Errorf("Expected Question to be '%s', but got '%s'", tc.expectedQ, e.Question)
				}
				if e.Answer != tc.expectedA {
					t.Errorf("Expected Answer to be '%s', but got '%s'", tc.expectedA, e.Answer)
				}
				if e.Context != tc.expectedC {
					t.Errorf("Expected Context to be '%s', but got '%s'", tc.expectedC, e.Context)
				}
				if e.Source != tc.expectedS {
					t.Errorf("Expected Source to be '%s', but got '%s'", tc.expectedS, e.Source)
				}
			}
		})
	}
}

func TestParseTwoEntriesKeepOrder(t *testing.T) {
	entries, err := ParseString("Q: one\nA: 1\n\nQ: two\nA: 2\n")
	if err != nil {
		t.Fatalf("ParseString() returned an unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, but got %d", len(entries))
	}
	if entries[0].Question != "one" || entries[1].Question != "two" {
		t.Errorf("Expected entries in input order, but got %q then %q", entries[0].Question, entries[1].Question)
	}
	if entries[0].Answer != "1" {
		t.Errorf("Expected trailing blank lines to be trimmed, but got %q", entries[0].Answer)
	}
}
