package knol

import "testing"

func TestNormalize(t *testing.T) {
	expected := "what is htmx?\na library for ajax.\nweb development"
	normalized := Normalize("  What is HTMX? \r\n", "A library for AJAX.", "Web Development")

	if normalized != expected {
		t.Errorf("Expected normalized string to be '%s', but got '%s'", expected, normalized)
	}
}

func TestHash(t *testing.T) {
	t.Run("generates correct hash", func(t *testing.T) {
		// Hash for "q\na\nc"
		expectedHash := "eb2456c1ee4f36305069dd0f63a30e92d5443129f5e8fd9a5ec490fbc4d4d8a2"
		hash := CardHash("Q", "A", "C")

		if hash != expectedHash {
			t.Errorf("Expected hash '%s', but got '%s'", expectedHash, hash)
		}
	})

	t.Run("hash is deterministic", func(t *testing.T) {
		if CardHash("Test", "", "") != CardHash("Test", "", "") {
			t.Error("Expected hashes for identical cards to be the same")
		}
	})

	t.Run("normalization produces same hash", func(t *testing.T) {
		h1 := CardHash("  what is go? ", "A programming language.", "")
		h2 := CardHash("What Is Go?", "A programming language.", "")
		if h1 != h2 {
			t.Error("Expected hashes to be the same after normalization, but they were different.")
		}
	})

	t.Run("different cards have different hashes", func(t *testing.T) {
		if CardHash("Card 1", "", "") == CardHash("Card 2", "", "") {
			t.Error("Expected hashes for different cards to be different")
		}
	})
}

func TestSpanHash(t *testing.T) {
	t.Run("rewrapped span matches", func(t *testing.T) {
		a := SpanHash("Biology", "Mitochondria produce ATP\nthrough respiration.")
		b := SpanHash("biology", "  mitochondria   produce ATP through\r\n respiration. ")
		if a != b {
			t.Error("Expected whitespace-only differences to hash the same")
		}
	})

	t.Run("subject separates spans", func(t *testing.T) {
		if SpanHash("Biology", "cells") == SpanHash("History", "cells") {
			t.Error("Expected the same span under different subjects to hash differently")
		}
	})
}
