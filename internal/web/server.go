// Package web exposes studydeck over a JSON HTTP API.
//
// Every request acts on behalf of the user named in the X-User-ID header;
// authenticating that user is left to a fronting proxy.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/conorfennell/studydeck/internal/cards"
	"github.com/conorfennell/studydeck/internal/generate"
	"github.com/conorfennell/studydeck/internal/importer"
	"github.com/conorfennell/studydeck/internal/progress"
	"github.com/conorfennell/studydeck/internal/review"
	"github.com/conorfennell/studydeck/internal/session"
)

// UserHeader carries the acting user's id.
const UserHeader = "X-User-ID"

// Deps are the services the server routes requests to.
type Deps struct {
	Cards     *cards.Store
	Scheduler *review.Scheduler
	Sessions  *session.Manager
	Generator *generate.Pipeline
	Progress  *progress.Aggregator
	Importer  *importer.Importer
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	Deps
	router *http.ServeMux
	logger *slog.Logger
	now    func() time.Time
}

// NewServer creates and configures a new server.
func NewServer(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Deps:   deps,
		router: http.NewServeMux(),
		logger: logger,
		now:    time.Now,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logRequests(s.router).ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", s.handleHealth())

	s.router.HandleFunc("GET /cards", s.withUser(s.handleListCards()))
	s.router.HandleFunc("POST /cards", s.withUser(s.handleCreateCard()))
	s.router.HandleFunc("GET /cards/due", s.withUser(s.handleListDue()))
	s.router.HandleFunc("GET /cards/{id}", s.withUser(s.handleGetCard()))
	s.router.HandleFunc("PATCH /cards/{id}", s.withUser(s.handleUpdateCard()))
	s.router.HandleFunc("DELETE /cards/{id}", s.withUser(s.handleDeleteCard()))
	s.router.HandleFunc("POST /cards/{id}/reviews", s.withUser(s.handleGrade()))
	s.router.HandleFunc("GET /cards/{id}/reviews", s.withUser(s.handleHistory()))
	s.router.HandleFunc("GET /cards/{id}/preview", s.withUser(s.handlePreview()))

	s.router.HandleFunc("POST /sessions", s.withUser(s.handleStartSession()))
	s.router.HandleFunc("GET /sessions/{id}", s.withUser(s.handleGetSession()))
	s.router.HandleFunc("POST /sessions/{id}/next", s.withUser(s.handleNextCard()))
	s.router.HandleFunc("POST /sessions/{id}/answer", s.withUser(s.handleAnswer()))
	s.router.HandleFunc("DELETE /sessions/{id}", s.withUser(s.handleAbandonSession()))

	s.router.HandleFunc("POST /generate", s.withUser(s.handleGenerate()))

	s.router.HandleFunc("GET /sources", s.withUser(s.handleListSources()))
	s.router.HandleFunc("POST /sources", s.withUser(s.handleImport()))

	s.router.HandleFunc("GET /progress", s.withUser(s.handleDashboard()))
	s.router.HandleFunc("GET /progress/subjects", s.withUser(s.handleSubjectProgress()))
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Cards.DB().Ping(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
