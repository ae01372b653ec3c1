package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nuforge/gamesync/internal/domain"
	"github.com/nuforge/gamesync/internal/engine"
	"github.com/nuforge/gamesync/internal/publish"
	"github.com/nuforge/gamesync/internal/transform"
)

type SyncHandler struct {
	syncer *engine.Syncer
}

func NewSyncHandler(s *engine.Syncer) *SyncHandler {
	return &SyncHandler{syncer: s}
}

func (h *SyncHandler) Event(w http.ResponseWriter, r *http.Request) {
	var event domain.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.syncer.SyncEvent(r.Context(), &event)
	if err != nil {
		respondSyncError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *SyncHandler) Game(w http.ResponseWriter, r *http.Request) {
	var game domain.Game
	if err := json.NewDecoder(r.Body).Decode(&game); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.syncer.SyncGame(r.Context(), &game)
	if err != nil {
		respondSyncError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// respondSyncError maps the pipeline's typed errors onto HTTP statuses.
func respondSyncError(w http.ResponseWriter, err error) {
	var mapErr *transform.MappingError
	if errors.As(err, &mapErr) {
		respondError(w, http.StatusBadRequest, mapErr.Error())
		return
	}

	var valErr *publish.ValidationError
	if errors.As(err, &valErr) {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "envelope failed validation",
			"violations": valErr.Violations,
		})
		return
	}

	var cfgErr *publish.ConfigurationError
	if errors.As(err, &cfgErr) {
		respondError(w, http.StatusServiceUnavailable, cfgErr.Error())
		return
	}

	respondError(w, http.StatusInternalServerError, "sync failed")
}
