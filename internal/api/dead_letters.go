package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nuforge/gamesync/internal/retry"
	"github.com/nuforge/gamesync/internal/store"
)

type DeadLetterHandler struct {
	store             *store.DeadLetterStore
	coordinator       *retry.Coordinator
	defaultBatchLimit int
}

func NewDeadLetterHandler(s *store.DeadLetterStore, c *retry.Coordinator, defaultBatchLimit int) *DeadLetterHandler {
	return &DeadLetterHandler{store: s, coordinator: c, defaultBatchLimit: defaultBatchLimit}
}

func (h *DeadLetterHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)
	includeTerminal := r.URL.Query().Get("include_terminal") == "true"

	entries, err := h.store.List(r.Context(), limit, includeTerminal)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}

	respondJSON(w, http.StatusOK, entries)
}

func (h *DeadLetterHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entry, err := h.store.Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get dead letter")
		return
	}
	if entry == nil {
		respondError(w, http.StatusNotFound, "dead letter not found")
		return
	}

	respondJSON(w, http.StatusOK, entry)
}

func (h *DeadLetterHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.Remove(r.Context(), id); err != nil {
		respondError(w, http.StatusNotFound, "dead letter not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *DeadLetterHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get dead letter stats")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

type processRequest struct {
	Limit int `json:"limit"`
}

// Process runs one retry batch now. This is the only trigger the service
// itself exposes; recurring processing belongs to an external scheduler.
func (h *DeadLetterHandler) Process(w http.ResponseWriter, r *http.Request) {
	limit := h.defaultBatchLimit

	if r.Body != nil && r.ContentLength != 0 {
		var req processRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Limit > 0 {
			limit = req.Limit
		}
	}

	report, err := h.coordinator.ProcessBatch(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "retry batch failed")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// Clear bulk-deletes every entry. Destructive, so the caller must pass
// confirm=true explicitly.
func (h *DeadLetterHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		respondError(w, http.StatusBadRequest, "clearing all dead letters requires confirm=true")
		return
	}

	deleted, err := h.store.Clear(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to clear dead letters")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func parseLimit(r *http.Request, fallback int) int {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return fallback
	}
	if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
		return n
	}
	return fallback
}
