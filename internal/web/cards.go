package web

import (
	"net/http"

	"github.com/conorfennell/studydeck/internal/domain"
)

type createCardRequest struct {
	Subject  string `json:"subject"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type gradeRequest struct {
	Rating domain.Rating `json:"rating"`
}

func (s *Server) handleListCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.Cards.List(r.Context(), userID(r.Context()), r.URL.Query().Get("subject"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if list == nil {
			list = []domain.Flashcard{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func (s *Server) handleListDue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		due, err := s.Cards.ListDue(r.Context(), userID(r.Context()), s.now())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if due == nil {
			due = []domain.Flashcard{}
		}
		writeJSON(w, http.StatusOK, due)
	}
}

func (s *Server) handleCreateCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCardRequest
		if err := decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		card, err := s.Cards.Create(r.Context(), userID(r.Context()), req.Subject, req.Question, req.Answer)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, card)
	}
}

func (s *Server) handleGetCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		card, err := s.Cards.Get(r.Context(), userID(r.Context()), r.PathValue("id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func (s *Server) handleUpdateCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch domain.CardPatch
		if err := decode(r, &patch); err != nil {
			s.writeError(w, r, err)
			return
		}
		card, err := s.Cards.Update(r.Context(), userID(r.Context()), r.PathValue("id"), patch)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func (s *Server) handleDeleteCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Cards.Delete(r.Context(), userID(r.Context()), r.PathValue("id")); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleGrade reviews a card outside of a session.
func (s *Server) handleGrade() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gradeRequest
		if err := decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		state, err := s.Scheduler.Grade(r.Context(), userID(r.Context()), r.PathValue("id"), req.Rating)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func (s *Server) handleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := s.Scheduler.History(r.Context(), userID(r.Context()), r.PathValue("id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if events == nil {
			events = []domain.ReviewEvent{}
		}
		writeJSON(w, http.StatusOK, events)
	}
}

func (s *Server) handlePreview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		outcomes, err := s.Scheduler.Preview(r.Context(), userID(r.Context()), r.PathValue("id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, outcomes)
	}
}
