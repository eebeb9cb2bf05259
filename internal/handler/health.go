package handler

import (
	"net/http"

	natsclient "github.com/reserva-ai/commerce-platform/internal/nats"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	natsClient *natsclient.Client
	natsWanted bool
}

// NewHealthHandler creates a new health handler. natsWanted marks whether a
// broker was configured; when it was not, readiness ignores NATS entirely.
func NewHealthHandler(natsClient *natsclient.Client, natsWanted bool) *HealthHandler {
	return &HealthHandler{
		natsClient: natsClient,
		natsWanted: natsWanted,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.natsWanted && (h.natsClient == nil || !h.natsClient.IsConnected()) {
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
