package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vytor/lexideck/internal/models"
	"github.com/vytor/lexideck/internal/services"
)

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.Cards.ListCards(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	if cards == nil {
		cards = []models.Flashcard{}
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"cards": cards})
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var input services.CreateCardInput
	if err := decodeJSON(r, &input); err != nil {
		handleError(w, r, err)
		return
	}
	input.DeckID = chi.URLParam(r, "id")

	card, err := s.Cards.CreateCard(r.Context(), input)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, card)
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.Cards.GetCard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, card)
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	var input services.UpdateCardInput
	if err := decodeJSON(r, &input); err != nil {
		handleError(w, r, err)
		return
	}

	card, err := s.Cards.UpdateCard(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, card)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := s.Cards.DeleteCard(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusNoContent, nil)
}

func (s *Server) handleReorderCards(w http.ResponseWriter, r *http.Request) {
	var input struct {
		CardIDs []string `json:"card_ids"`
	}
	if err := decodeJSON(r, &input); err != nil {
		handleError(w, r, err)
		return
	}

	if err := s.Cards.Reorder(r.Context(), chi.URLParam(r, "id"), input.CardIDs); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusNoContent, nil)
}
