package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"election-core/internal/domain"
	"election-core/internal/service"
	"election-core/pkg/errors"
	"election-core/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// ClassWatcher is the registry of per-class background timers. Classes are
// enrolled when an admin configures them and dropped on reset.
type ClassWatcher interface {
	Watch(classID string)
	Unwatch(classID string)
}

// AdminHandler exposes the admin-only lifecycle transitions
type AdminHandler struct {
	lifecycle *service.LifecycleService
	watchers  []ClassWatcher
	logger    *logger.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(lifecycle *service.LifecycleService, watchers []ClassWatcher, logger *logger.Logger) *AdminHandler {
	return &AdminHandler{
		lifecycle: lifecycle,
		watchers:  watchers,
		logger:    logger,
	}
}

// SetSchedule handles PUT /api/v1/admin/classes/{classId}/schedule
func (h *AdminHandler) SetSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	classID := chi.URLParam(r, "classId")
	if strings.TrimSpace(classID) == "" {
		respondError(w, errors.NewValidationError("", "class id is required"))
		return
	}

	var req domain.ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewValidationError("", "invalid request body"))
		return
	}
	if req.StartAt.IsZero() || req.EndAt.IsZero() {
		respondError(w, errors.NewValidationError(errors.ReasonBadSchedule, "start_at and end_at are required"))
		return
	}

	state, err := h.lifecycle.SetSchedule(ctx, classID, req.StartAt, req.EndAt)
	if err != nil {
		respondError(w, err)
		return
	}

	// From here the clock owns the window; enroll the class's timers.
	for _, watcher := range h.watchers {
		watcher.Watch(classID)
	}

	respondJSON(w, http.StatusOK, state)
}

// SetVoting handles POST /api/v1/admin/classes/{classId}/voting
func (h *AdminHandler) SetVoting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	classID := chi.URLParam(r, "classId")
	if strings.TrimSpace(classID) == "" {
		respondError(w, errors.NewValidationError("", "class id is required"))
		return
	}

	var req domain.VotingToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewValidationError("", "invalid request body"))
		return
	}

	state, err := h.lifecycle.SetVoting(ctx, classID, req.Enabled)
	if err != nil {
		respondError(w, err)
		return
	}

	if req.Enabled {
		for _, watcher := range h.watchers {
			watcher.Watch(classID)
		}
	}

	respondJSON(w, http.StatusOK, state)
}

// SetResults handles POST /api/v1/admin/classes/{classId}/results
func (h *AdminHandler) SetResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	classID := chi.URLParam(r, "classId")
	if strings.TrimSpace(classID) == "" {
		respondError(w, errors.NewValidationError("", "class id is required"))
		return
	}

	var req domain.ResultsToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewValidationError("", "invalid request body"))
		return
	}

	state, err := h.lifecycle.SetResultsVisible(ctx, classID, req.Visible)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

// Reset handles POST /api/v1/admin/classes/{classId}/reset
func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	classID := chi.URLParam(r, "classId")
	if strings.TrimSpace(classID) == "" {
		respondError(w, errors.NewValidationError("", "class id is required"))
		return
	}

	state, err := h.lifecycle.Reset(ctx, classID)
	if err != nil {
		respondError(w, err)
		return
	}

	for _, watcher := range h.watchers {
		watcher.Unwatch(classID)
	}

	respondJSON(w, http.StatusOK, state)
}
