package gitsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
)

func TestIsURL(t *testing.T) {
	testCases := []struct {
		source string
		want   bool
	}{
		{"https://github.com/owner/deck.git", true},
		{"https://github.com/owner/deck", true},
		{"git@github.com:owner/deck.git", true},
		{"/home/me/decks", false},
		{"decks", false},
		{"./decks.git", true},
	}

	for _, tc := range testCases {
		t.Run(tc.source, func(t *testing.T) {
			if got := IsURL(tc.source); got != tc.want {
				t.Errorf("Expected IsURL(%q) = %v, but got %v", tc.source, tc.want, got)
			}
		})
	}
}

func TestLocalPath(t *testing.T) {
	base := filepath.Join("data", "repos")
	testCases := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"https", "https://github.com/owner/deck.git", filepath.Join(base, "github.com", "owner", "deck"), false},
		{"https without suffix", "https://gitlab.com/group/sub/deck", filepath.Join(base, "gitlab.com", "group", "sub", "deck"), false},
		{"scp form", "git@github.com:owner/deck.git", filepath.Join(base, "github.com", "owner", "deck"), false},
		{"no host", "owner/deck.git", "", true},
		{"no path", "https://github.com/", "", true},
		{"escapes base", "git@github.com:../../etc.git", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LocalPath(base, tc.url)
			if tc.wantErr {
				if err == nil {
					t.Errorf("Expected an error for %q, but got path %q", tc.url, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("LocalPath(%q) failed: %v", tc.url, err)
			}
			if got != tc.want {
				t.Errorf("Expected %q, but got %q", tc.want, got)
			}
		})
	}
}

func TestSyncRejectsNonRepository(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.md"), []byte("Q: q\nA: a\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := Sync(context.Background(), "https://example.invalid/deck.git", dir, nil)
	if err == nil {
		t.Fatal("Expected an error pulling into a directory that is not a repository")
	}
}

func TestSyncPullsExistingClone(t *testing.T) {
	dir := t.TempDir()
	if _, err := git.PlainInit(dir, false); err != nil {
		t.Fatalf("Failed to init repo: %v", err)
	}

	// A repository without an origin remote cannot be pulled.
	if err := Sync(context.Background(), "https://example.invalid/deck.git", dir, nil); err == nil {
		t.Fatal("Expected pull without an origin remote to fail")
	}
}

func TestWithin(t *testing.T) {
	testCases := []struct {
		path string
		want bool
	}{
		{"/data/decks", true},
		{"/data/decks/bio", true},
		{"/data/decks/../decks/bio", true},
		{"/data/decks-old", false},
		{"/data/..decks", false},
		{"/data", false},
		{"/data/decks/../secrets", false},
	}
	for _, tc := range testCases {
		if got := Within("/data/decks", tc.path); got != tc.want {
			t.Errorf("Expected Within(%q) = %v, but got %v", tc.path, tc.want, got)
		}
	}
}
