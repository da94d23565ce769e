package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/session"
)

type startSessionRequest struct {
	Budget   string `json:"budget,omitempty"` // Go duration, e.g. "15m"
	MaxCards int    `json:"max_cards,omitempty"`
}

type nextCardResponse struct {
	Done    bool              `json:"done"`
	Card    *domain.Flashcard `json:"card,omitempty"`
	Session session.Snapshot  `json:"session"`
}

type answerResponse struct {
	Review  domain.ReviewState `json:"review"`
	Session session.Snapshot   `json:"session"`
}

func (s *Server) handleStartSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startSessionRequest
		if r.ContentLength != 0 {
			if err := decode(r, &req); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
		budget, err := parseBudget(req.Budget)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		sess, err := s.Sessions.Start(r.Context(), userID(r.Context()), budget, req.MaxCards)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, sess.Snapshot())
	}
}

func (s *Server) handleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.Sessions.Get(userID(r.Context()), r.PathValue("id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}

func (s *Server) handleNextCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := userID(r.Context())
		sess, err := s.Sessions.Get(user, r.PathValue("id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		card, ok, err := sess.Next(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp := nextCardResponse{Done: !ok, Session: sess.Snapshot()}
		if ok {
			resp.Card = &card
		} else {
			s.Sessions.Abandon(user, sess.ID)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gradeRequest
		if err := decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		sess, err := s.Sessions.Get(userID(r.Context()), r.PathValue("id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		state, err := sess.RecordAnswer(r.Context(), req.Rating)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, answerResponse{Review: state, Session: sess.Snapshot()})
	}
}

func (s *Server) handleAbandonSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Sessions.Abandon(userID(r.Context()), r.PathValue("id")); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func parseBudget(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: budget must be a positive duration", domain.ErrValidation)
	}
	return d, nil
}
