// Package importer loads hand-written decks into a user's card store.
//
// A deck source is a directory of Markdown files in the Q:/A: format, or a
// git repository of them. Cards already in the store are left alone.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/conorfennell/studydeck/internal/cards"
	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/gitsource"
	"github.com/conorfennell/studydeck/internal/knol"
	"github.com/conorfennell/studydeck/internal/parser"
	"github.com/conorfennell/studydeck/internal/storage"
)

const parseWorkers = 4

// Result summarizes one import.
type Result struct {
	Source     string   `json:"source"`
	Files      int      `json:"files"`
	Parsed     int      `json:"parsed"`
	Created    int      `json:"created"`
	Skipped    int      `json:"skipped"`
	FileErrors []string `json:"file_errors,omitempty"`
}

// Importer reads deck sources into a card store.
type Importer struct {
	cards     *cards.Store
	reposDir  string
	localRoot string
	logger    *slog.Logger
	now       func() time.Time
	sync      func(ctx context.Context, url, path string, logger *slog.Logger) error
}

// Option configures an Importer.
type Option func(*Importer)

// WithLocalRoot confines local directory sources to root. Relative sources
// are resolved against it and anything outside it is rejected. Without this
// option any readable directory may be imported.
func WithLocalRoot(root string) Option {
	return func(im *Importer) { im.localRoot = root }
}

// New creates an importer that keeps git clones under reposDir.
func New(store *cards.Store, reposDir string, logger *slog.Logger, opts ...Option) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	im := &Importer{
		cards:    store,
		reposDir: reposDir,
		logger:   logger,
		now:      time.Now,
		sync:     gitsource.Sync,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

type parsedFile struct {
	path    string
	entries []parser.Entry
	err     error
}

// Import reads every .md file under source into userID's store. source is a
// local directory or a git URL, which is cloned or pulled first.
func (im *Importer) Import(ctx context.Context, userID, source string) (Result, error) {
	source = strings.TrimSpace(source)
	if strings.TrimSpace(userID) == "" || source == "" {
		return Result{}, fmt.Errorf("%w: user and source are required", domain.ErrValidation)
	}

	sourceType, dir, err := im.resolve(ctx, source)
	if err != nil {
		return Result{}, err
	}

	db := im.cards.DB()
	sourceID, err := db.UpsertSource(ctx, userID, source, sourceType)
	if err != nil {
		return Result{}, err
	}

	files, err := markdownFiles(dir)
	if err != nil {
		return Result{}, fmt.Errorf("error walking directory %s: %w", dir, err)
	}
	parsed, err := parseAll(ctx, files)
	if err != nil {
		return Result{}, err
	}

	existing, err := im.cards.SourceHashes(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	res := Result{Source: source, Files: len(files)}
	var batch []cards.NewCard
	for _, pf := range parsed {
		if pf.err != nil {
			res.FileErrors = append(res.FileErrors, fmt.Sprintf("%s: %v", relOrAbs(dir, pf.path), pf.err))
			continue
		}
		defaultSubject := strings.TrimSuffix(filepath.Base(pf.path), filepath.Ext(pf.path))
		for _, e := range pf.entries {
			res.Parsed++
			if strings.TrimSpace(e.Answer) == "" {
				res.Skipped++
				continue
			}
			subject := e.Context
			if subject == "" {
				subject = defaultSubject
			}
			if utf8.RuneCountInString(subject) > domain.MaxSubjectLength {
				res.Skipped++
				continue
			}
			hash := knol.CardHash(e.Question, e.Answer, subject)
			if existing[hash] {
				res.Skipped++
				continue
			}
			existing[hash] = true
			batch = append(batch, cards.NewCard{
				Subject:    subject,
				Question:   e.Question,
				Answer:     e.Answer,
				SourceHash: hash,
			})
		}
	}

	if len(batch) > 0 {
		created, err := im.cards.CreateBatch(ctx, userID, batch)
		if err != nil {
			return Result{}, fmt.Errorf("failed to store imported cards: %w", err)
		}
		res.Created = len(created)
	}

	if err := db.UpdateSourceLastScanned(ctx, sourceID, im.now()); err != nil {
		im.logger.Warn("failed to update last scanned for source", "source_id", sourceID, "error", err)
	}

	im.logger.Info("import complete",
		"user_id", userID,
		"source", source,
		"files", res.Files,
		"parsed", res.Parsed,
		"created", res.Created,
		"skipped", res.Skipped,
		"errors", len(res.FileErrors),
	)
	return res, nil
}

// Sources lists the deck sources userID has imported from.
func (im *Importer) Sources(ctx context.Context, userID string) ([]storage.Source, error) {
	return im.cards.DB().ListSources(ctx, userID)
}

// resolve returns the source type and the local directory to scan.
func (im *Importer) resolve(ctx context.Context, source string) (string, string, error) {
	if gitsource.IsURL(source) {
		local, err := gitsource.LocalPath(im.reposDir, source)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		if err := im.sync(ctx, source, local, im.logger); err != nil {
			return "", "", err
		}
		return storage.SourceGit, local, nil
	}

	dir := source
	if im.localRoot != "" && !filepath.IsAbs(dir) {
		dir = filepath.Join(im.localRoot, dir)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", "", fmt.Errorf("%w: source %s: %v", domain.ErrValidation, source, err)
	}
	if !info.IsDir() {
		return "", "", fmt.Errorf("%w: source %s is not a directory", domain.ErrValidation, source)
	}
	if im.localRoot != "" {
		if err := confine(im.localRoot, dir); err != nil {
			return "", "", fmt.Errorf("%w: source %s: %v", domain.ErrValidation, source, err)
		}
	}
	return storage.SourceLocal, dir, nil
}

// confine checks that dir resolves, symlinks included, to a directory
// inside root.
func confine(root, dir string) error {
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("deck root unavailable: %v", err)
	}
	realDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return err
	}
	realRoot, _ = filepath.Abs(realRoot)
	realDir, _ = filepath.Abs(realDir)
	if !gitsource.Within(realRoot, realDir) {
		return errors.New("outside the deck directory")
	}
	return nil
}

func markdownFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// parseAll parses files concurrently. Per-file failures are recorded on the
// result rather than aborting the import.
func parseAll(ctx context.Context, files []string) ([]parsedFile, error) {
	out := make([]parsedFile, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parseWorkers)
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entries, err := parser.ParseFile(path)
			out[i] = parsedFile{path: path, entries: entries, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func relOrAbs(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return rel
	}
	return path
}
