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

// ChatHandler exposes the ephemeral class chat
type ChatHandler struct {
	chatService *service.ChatService
	logger      *logger.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *service.ChatService, logger *logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger,
	}
}

// Post handles POST /api/v1/classes/{classId}/chat
func (h *ChatHandler) Post(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	classID := chi.URLParam(r, "classId")
	if strings.TrimSpace(classID) == "" {
		respondError(w, errors.NewValidationError("", "class id is required"))
		return
	}

	claims := middleware.ClaimsFrom(r)
	if claims == nil {
		respondError(w, errors.NewAuthenticationError("Authentication required"))
		return
	}

	var req domain.ChatPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewValidationError("", "invalid request body"))
		return
	}

	msg, err := h.chatService.Post(ctx, classID, claims.VoterID, &req)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, msg)
}

// Recent handles GET /api/v1/classes/{classId}/chat
func (h *ChatHandler) Recent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	classID := chi.URLParam(r, "classId")
	if strings.TrimSpace(classID) == "" {
		respondError(w, errors.NewValidationError("", "class id is required"))
		return
	}

	messages, err := h.chatService.Recent(ctx, classID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"class_id": classID,
		"messages": messages,
	})
}
