package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vytor/lexideck/internal/coordinator"
	"github.com/vytor/lexideck/internal/repository"
	"github.com/vytor/lexideck/internal/services"
)

// Server holds the HTTP API dependencies. The API is the seam UI
// collaborators talk through; every response is JSON.
type Server struct {
	DB          *sql.DB
	Decks       services.DeckService
	Cards       services.CardService
	Reviews     services.ReviewService
	SyncRepo    repository.SyncRepository
	Coordinator *coordinator.Coordinator
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Route("/decks", func(r chi.Router) {
			r.Get("/", s.handleListDecks)
			r.Post("/", s.handleCreateDeck)
			r.Get("/overview", s.handleDeckOverview)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDeck)
				r.Patch("/", s.handleUpdateDeck)
				r.Delete("/", s.handleDeleteDeck)
				r.Get("/counts", s.handleDeckCounts)
				r.Get("/cards", s.handleListCards)
				r.Post("/cards", s.handleCreateCard)
				r.Put("/order", s.handleReorderCards)
				r.Get("/due", s.handleDueCards)
			})
		})

		r.Route("/cards/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetCard)
			r.Patch("/", s.handleUpdateCard)
			r.Delete("/", s.handleDeleteCard)
			r.Post("/review", s.handleReviewCard)
			r.Get("/stats", s.handleCardStats)
		})

		r.Route("/sync", func(r chi.Router) {
			r.Post("/", s.handleTriggerSync)
			r.Get("/status", s.handleSyncStatus)
		})
	})

	return r
}
