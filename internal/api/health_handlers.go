package api

import (
	"net/http"

	"github.com/vytor/lexideck/internal/logger"
)

// handleHealth returns a liveness probe, always 200 OK.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleReady checks whether the service can accept traffic: the local
// database must respond to a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.DB.PingContext(ctx); err != nil {
		logger.FromContext(ctx).Warn("readiness check failed: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
