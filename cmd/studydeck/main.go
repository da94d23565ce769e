package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/conorfennell/studydeck/internal/cards"
	"github.com/conorfennell/studydeck/internal/config"
	"github.com/conorfennell/studydeck/internal/generate"
	"github.com/conorfennell/studydeck/internal/importer"
	"github.com/conorfennell/studydeck/internal/logging"
	"github.com/conorfennell/studydeck/internal/progress"
	"github.com/conorfennell/studydeck/internal/review"
	"github.com/conorfennell/studydeck/internal/session"
	"github.com/conorfennell/studydeck/internal/storage"
	"github.com/conorfennell/studydeck/internal/web"
)

const usage = `usage: studydeck <command> [flags]

commands:
  serve                      run the HTTP API
  import --user ID SOURCE    import a deck directory or git repository
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "import":
		err = runImport(ctx, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("studydeck failed", "error", err)
		os.Exit(1)
	}
}

// app wires every service over one database.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *storage.DB
	cards    *cards.Store
	importer *importer.Importer
}

func setup(fs *pflag.FlagSet) (*app, error) {
	cfg, err := config.Load(fs)
	if err != nil {
		return nil, err
	}

	logger := logging.New(os.Stderr, cfg.LogLevel(), cfg.Log.Format)
	slog.SetDefault(logger)

	db, err := storage.Open(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Info("database opened", "path", cfg.DB.Path)

	store := cards.NewStore(db, logger)
	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		cards:    store,
		importer: importer.New(store, filepath.Join(cfg.Data.Dir, "repos"), logger),
	}, nil
}

func runServe(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := setup(fs)
	if err != nil {
		return err
	}
	defer a.db.Close()

	params := a.cfg.SRS
	sched := review.NewScheduler(a.db, &params, a.logger)
	planner := session.NewPlanner(a.cards, sched, a.cfg.Session, a.logger)

	var gen generate.Generator = generate.ExtractGenerator{}
	if a.cfg.AI.APIKey != "" {
		gen = generate.NewOpenAIGenerator(a.cfg.AI, a.logger)
		a.logger.Info("card generation enabled", "model", a.cfg.AI.Model)
	} else {
		a.logger.Info("no AI API key configured, generation only extracts Q:/A: blocks")
	}

	// Over HTTP, local decks may only come from <data.dir>/decks.
	decksDir := filepath.Join(a.cfg.Data.Dir, "decks")
	if err := os.MkdirAll(decksDir, 0o755); err != nil {
		return fmt.Errorf("failed to create decks directory: %w", err)
	}
	httpImporter := importer.New(a.cards, filepath.Join(a.cfg.Data.Dir, "repos"), a.logger,
		importer.WithLocalRoot(decksDir))

	server := web.NewServer(web.Deps{
		Cards:     a.cards,
		Scheduler: sched,
		Sessions:  session.NewManager(planner),
		Generator: generate.NewPipeline(gen, a.cards, a.cfg.Generate, a.logger),
		Progress:  progress.NewAggregator(a.db, a.cfg.Progress, a.logger),
		Importer:  httpImporter,
	}, a.logger)

	httpServer := &http.Server{Addr: a.cfg.HTTP.Addr, Handler: server}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting server", "addr", a.cfg.HTTP.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func runImport(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("import", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	user := fs.String("user", "", "user to import the cards for")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" || fs.NArg() != 1 {
		return errors.New("import needs --user and exactly one source")
	}

	a, err := setup(fs)
	if err != nil {
		return err
	}
	defer a.db.Close()

	res, err := a.importer.Import(ctx, *user, fs.Arg(0))
	if err != nil {
		return err
	}

	fmt.Printf("Found %d cards in %d files: %d created, %d skipped, %d errors.\n",
		res.Parsed, res.Files, res.Created, res.Skipped, len(res.FileErrors))
	if len(res.FileErrors) > 0 {
		fmt.Println("\nErrors:")
		for _, e := range res.FileErrors {
			fmt.Printf("- %s\n", e)
		}
	}
	return nil
}
