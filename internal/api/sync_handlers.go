package api

import (
	"net/http"

	"github.com/vytor/lexideck/internal/coordinator"
	"github.com/vytor/lexideck/internal/errors"
	"github.com/vytor/lexideck/internal/logger"
)

func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	var input struct {
		OwnerID string `json:"owner_id"`
	}
	if err := decodeJSON(r, &input); err != nil {
		handleError(w, r, err)
		return
	}
	if input.OwnerID == "" {
		handleError(w, r, errors.NewValidationError("owner_id", "must not be empty"))
		return
	}

	log := logger.FromContext(r.Context())
	log.Info("manual sync requested: owner=%s", input.OwnerID)

	accepted := s.Coordinator.Trigger(input.OwnerID, coordinator.TriggerManual)
	respondJSON(w, r, http.StatusAccepted, map[string]any{"queued": accepted})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		handleError(w, r, errors.NewBadRequestError("owner_id query parameter required"))
		return
	}

	status, err := s.SyncRepo.DirtyCounts(r.Context(), ownerID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	status.Running = s.Coordinator.Running(ownerID)
	respondJSON(w, r, http.StatusOK, status)
}
