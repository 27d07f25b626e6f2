package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/personify-ai/chat-platform/internal/events"
	"github.com/personify-ai/chat-platform/internal/store"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store     *store.Store
	publisher *events.Publisher
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(st *store.Store, pub *events.Publisher) *HealthHandler {
	return &HealthHandler{store: st, publisher: pub}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database not reachable",
		})
		return
	}

	if h.publisher != nil && !h.publisher.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
