package api

import (
	"net/http"

	"github.com/nuforge/gamesync/internal/publish"
)

type HealthHandler struct {
	publisher *publish.Publisher
}

func NewHealthHandler(p *publish.Publisher) *HealthHandler {
	return &HealthHandler{publisher: p}
}

// Service reports this service's own liveness and whether the ingestion
// endpoint is configured.
func (h *HealthHandler) Service(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":            "healthy",
		"version":           "1.0.0",
		"ingest_configured": h.publisher.Configured(),
	})
}

// Ingest probes the ingestion endpoint and reports round-trip latency.
// Operator-facing only; retry eligibility never depends on it.
func (h *HealthHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	health, err := h.publisher.HealthCheck(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, health)
}
