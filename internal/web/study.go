package web

import (
	"net/http"
	"time"

	"github.com/conorfennell/studydeck/internal/progress"
	"github.com/conorfennell/studydeck/internal/storage"
)

const defaultDashboardWindow = 7 * 24 * time.Hour

type generateRequest struct {
	Text    string `json:"text"`
	Subject string `json:"subject"`
}

type importRequest struct {
	Source string `json:"source"`
}

func (s *Server) handleGenerate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		created, err := s.Generator.Run(r.Context(), userID(r.Context()), req.Text, req.Subject)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func (s *Server) handleImport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req importRequest
		if err := decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		res, err := s.Importer.Import(r.Context(), userID(r.Context()), req.Source)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleListSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := s.Importer.Sources(r.Context(), userID(r.Context()))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if sources == nil {
			sources = []storage.Source{}
		}
		writeJSON(w, http.StatusOK, sources)
	}
}

// handleDashboard serves the home screen figures. ?window= sets the period,
// a week by default.
func (s *Server) handleDashboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		window, err := duration(r, "window", defaultDashboardWindow)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		d, err := s.Progress.Dashboard(r.Context(), userID(r.Context()), s.now(), window)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func (s *Server) handleSubjectProgress() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.Progress.SubjectProgress(r.Context(), userID(r.Context()))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if stats == nil {
			stats = []progress.SubjectStat{}
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
