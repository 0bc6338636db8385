package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vytor/lexideck/internal/logger"
	"github.com/vytor/lexideck/internal/models"
)

func (s *Server) handleDueCards(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "id")
	limit := 0
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = l
	}

	cards, err := s.Reviews.DueCards(r.Context(), deckID, limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if cards == nil {
		cards = []models.Flashcard{}
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"cards": cards})
}

func (s *Server) handleReviewCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var input struct {
		Outcome string `json:"outcome"`
	}
	if err := decodeJSON(r, &input); err != nil {
		handleError(w, r, err)
		return
	}

	log := logger.FromContext(r.Context())
	log.Debug("review request: flashcard_id=%s, outcome=%s", id, input.Outcome)

	stats, err := s.Reviews.RecordReview(r.Context(), id, input.Outcome)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, stats)
}

func (s *Server) handleCardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Reviews.GetStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, stats)
}
