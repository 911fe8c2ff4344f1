package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"election-core/internal/domain"
	"election-core/internal/middleware"
	"election-core/internal/service"
	"election-core/pkg/errors"
	"election-core/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// VotingHandler exposes vote casting and results reading
type VotingHandler struct {
	votingService *service.VotingService
	logger        *logger.Logger
}

// NewVotingHandler creates a new voting handler
func NewVotingHandler(votingService *service.VotingService, logger *logger.Logger) *VotingHandler {
	return &VotingHandler{
		votingService: votingService,
		logger:        logger,
	}
}

// CastVote handles POST /api/v1/classes/{classId}/vote
func (h *VotingHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	classID := chi.URLParam(r, "classId")

	claims := middleware.ClaimsFrom(r)
	if claims == nil {
		respondError(w, errors.NewAuthenticationError("Authentication required"))
		return
	}

	var req domain.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewValidationError("", "invalid request body"))
		return
	}

	if err := h.validateCastRequest(classID, &req); err != nil {
		respondError(w, err)
		return
	}

	response, err := h.votingService.CastVote(ctx, claims.VoterID, classID, &req)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, response)
}

// MyVote handles GET /api/v1/classes/{classId}/my-vote
func (h *VotingHandler) MyVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	classID := chi.URLParam(r, "classId")

	claims := middleware.ClaimsFrom(r)
	if claims == nil {
		respondError(w, errors.NewAuthenticationError("Authentication required"))
		return
	}

	status, err := h.votingService.MyStatus(ctx, classID, claims.VoterID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// GetResults handles GET /api/v1/classes/{classId}/results
func (h *VotingHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	classID := chi.URLParam(r, "classId")

	isAdmin := false
	if claims := middleware.ClaimsFrom(r); claims != nil {
		isAdmin = claims.IsAdmin()
	}

	tally, err := h.votingService.GetTally(ctx, classID, isAdmin)
	if err != nil {
		respondError(w, err)
		return
	}

	etag := generateETag(tally)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=10")

	respondJSON(w, http.StatusOK, tally)
}

// ListCandidates handles GET /api/v1/classes/{classId}/candidates
func (h *VotingHandler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	classID := chi.URLParam(r, "classId")

	isAdmin := false
	if claims := middleware.ClaimsFrom(r); claims != nil {
		isAdmin = claims.IsAdmin()
	}

	candidates, err := h.votingService.ListCandidates(ctx, classID, isAdmin)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"class_id":   classID,
		"candidates": candidates,
	})
}

// validateCastRequest checks the request shape before touching any store
func (h *VotingHandler) validateCastRequest(classID string, req *domain.CastVoteRequest) error {
	if strings.TrimSpace(classID) == "" {
		return errors.NewValidationError("", "class id is required")
	}
	if strings.TrimSpace(req.CandidateID) == "" {
		return errors.NewValidationError("", "candidate id is required")
	}
	return nil
}
