package handler

import (
	"net/http"
	"time"

	"election-core/internal/domain"
	"election-core/internal/realtime"
	"election-core/internal/service"
	"election-core/pkg/errors"
	"election-core/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
)

// StatusHandler exposes the election status: a polling endpoint backed by
// the authoritative store and a websocket stream backed by the broadcaster.
type StatusHandler struct {
	lifecycle *service.LifecycleService
	hub       *realtime.Hub
	clock     clockwork.Clock
	logger    *logger.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(lifecycle *service.LifecycleService, hub *realtime.Hub, clock clockwork.Clock, logger *logger.Logger) *StatusHandler {
	return &StatusHandler{
		lifecycle: lifecycle,
		hub:       hub,
		clock:     clock,
		logger:    logger,
	}
}

// statusResponse is the polled status shape: the durable state plus the
// derived lifecycle phase.
type statusResponse struct {
	ClassID        string       `json:"class_id"`
	VotingEnabled  bool         `json:"voting_enabled"`
	ResultsVisible bool         `json:"results_visible"`
	StartAt        *time.Time   `json:"start_at,omitempty"`
	EndAt          *time.Time   `json:"end_at,omitempty"`
	Phase          domain.Phase `json:"phase"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// GetStatus handles GET /api/v1/classes/{classId}/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classId")
	if classID == "" {
		respondError(w, errors.NewValidationError("", "class id is required"))
		return
	}

	state, err := h.lifecycle.GetStatus(r.Context(), classID)
	if err != nil {
		respondError(w, err)
		return
	}

	response := statusResponse{
		ClassID:        state.ClassID,
		VotingEnabled:  state.VotingEnabled,
		ResultsVisible: state.ResultsVisible,
		StartAt:        state.StartAt,
		EndAt:          state.EndAt,
		Phase:          state.Phase(h.clock.Now()),
		UpdatedAt:      state.UpdatedAt,
	}

	etag := generateETag(response)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=5")

	respondJSON(w, http.StatusOK, response)
}

// StreamStatus handles GET /api/v1/classes/{classId}/status/ws
func (h *StatusHandler) StreamStatus(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classId")
	if classID == "" {
		respondError(w, errors.NewValidationError("", "class id is required"))
		return
	}
	h.hub.ServeStatus(w, r, classID)
}
