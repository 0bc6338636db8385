package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vytor/lexideck/internal/errors"
	"github.com/vytor/lexideck/internal/logger"
	"github.com/vytor/lexideck/internal/models"
	"github.com/vytor/lexideck/internal/services"
)

func (s *Server) handleListDecks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.DeckFilter{
		OwnerID:    q.Get("owner_id"),
		Language:   q.Get("language"),
		ActiveOnly: q.Get("active") == "true",
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = offset
	}

	decks, err := s.Decks.ListDecks(r.Context(), filter)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if decks == nil {
		decks = []models.Deck{}
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"decks": decks})
}

func (s *Server) handleCreateDeck(w http.ResponseWriter, r *http.Request) {
	var input services.CreateDeckInput
	if err := decodeJSON(r, &input); err != nil {
		handleError(w, r, err)
		return
	}

	deck, err := s.Decks.CreateDeck(r.Context(), input)
	if err != nil {
		handleError(w, r, err)
		return
	}

	// New deck owners start syncing right away.
	s.Coordinator.Track(deck.OwnerID)
	respondJSON(w, r, http.StatusCreated, deck)
}

func (s *Server) handleGetDeck(w http.ResponseWriter, r *http.Request) {
	deck, err := s.Decks.GetDeck(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, deck)
}

func (s *Server) handleUpdateDeck(w http.ResponseWriter, r *http.Request) {
	var input services.UpdateDeckInput
	if err := decodeJSON(r, &input); err != nil {
		handleError(w, r, err)
		return
	}

	deck, err := s.Decks.UpdateDeck(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, deck)
}

func (s *Server) handleDeleteDeck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	log := logger.FromContext(r.Context())

	if err := s.Decks.DeleteDeck(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	log.Info("deck deleted: id=%s", id)
	respondJSON(w, r, http.StatusNoContent, nil)
}

func (s *Server) handleDeckCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.Decks.DeckCounts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, counts)
}

func (s *Server) handleDeckOverview(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		handleError(w, r, errors.NewBadRequestError("owner_id query parameter required"))
		return
	}

	overview, err := s.Decks.Overview(r.Context(), ownerID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if overview == nil {
		overview = []models.DeckOverview{}
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"decks": overview})
}
