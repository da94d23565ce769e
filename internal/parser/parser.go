// Package parser reads question/answer blocks written in the plain-text
// deck format:
//
//	Q: What is the powerhouse of the cell?
//	A: The mitochondrion.
//	C: Biology
//	S: Mitochondria are the powerhouse of the cell.
//	---
//
// C: carries the subject (context) and S: the source excerpt a generated
// card was drawn from. Both are optional; a block without a question is
// dropped.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	contextPrefix  = "C:"
	sourcePrefix   = "S:"
	separator      = "---"
)

// Entry is one parsed question/answer block.
type Entry struct {
	Question string
	Answer   string
	Context  string
	Source   string
}

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
	readingContext
	readingSource
)

var prefixes = []struct {
	prefix string
	state  state
}{
	{questionPrefix, readingQuestion},
	{answerPrefix, readingAnswer},
	{contextPrefix, readingContext},
	{sourcePrefix, readingSource},
}

// ParseFile reads a file from the given path and extracts all entries.
func ParseFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// ParseString is Parse over an in-memory document.
func ParseString(s string) ([]Entry, error) {
	return Parse(strings.NewReader(s))
}

// Parse reads from an io.Reader and extracts all entries.
func Parse(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var entries []Entry
	var current Entry
	var block []string
	currentState := seeking

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(block, "\n"))
		switch currentState {
		case readingQuestion:
			current.Question = content
		case readingAnswer:
			current.Answer = content
		case readingContext:
			current.Context = content
		case readingSource:
			current.Source = content
		}
		block = nil
	}

	finishEntry := func() {
		flushBlock()
		if current.Question != "" {
			entries = append(entries, current)
		}
		current = Entry{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.TrimSpace(line) == separator {
			finishEntry()
			continue
		}

		next, content, ok := matchPrefix(line)
		if !ok {
			if currentState != seeking {
				block = append(block, line)
			}
			continue
		}

		flushBlock()
		if next == readingQuestion && currentState != seeking {
			// A new question always starts a new entry.
			finishEntry()
		}
		currentState = next
		block = append(block, content)
	}

	finishEntry() // the last entry in the input has no trailing separator

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func matchPrefix(line string) (state, string, bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(line, p.prefix) {
			content := line[len(p.prefix):]
			content = strings.TrimPrefix(content, " ")
			return p.state, content, true
		}
	}
	return seeking, "", false
}
