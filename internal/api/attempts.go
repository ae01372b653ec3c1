package api

import (
	"net/http"

	"github.com/nuforge/gamesync/internal/store"
)

type AttemptHandler struct {
	store *store.PostgresStore
}

func NewAttemptHandler(s *store.PostgresStore) *AttemptHandler {
	return &AttemptHandler{store: s}
}

func (h *AttemptHandler) List(w http.ResponseWriter, r *http.Request) {
	envelopeID := r.URL.Query().Get("envelope_id")
	status := r.URL.Query().Get("status")
	limit := parseLimit(r, 50)

	attempts, err := h.store.ListPublishAttempts(r.Context(), envelopeID, status, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list publish attempts")
		return
	}

	respondJSON(w, http.StatusOK, attempts)
}
