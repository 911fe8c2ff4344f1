package service

import (
	"context"
	"strings"
	"time"

	"election-core/internal/domain"
	"election-core/internal/repository"
	"election-core/pkg/errors"
	"election-core/pkg/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const maxChatBodyLen = 500

// ChatService handles the ephemeral side channel. Messages are time-boxed:
// the sweeper ages them out and a results reveal wipes them entirely, so
// reads only ever surface items inside the retention window.
type ChatService struct {
	chat      repository.ChatRepository
	clock     clockwork.Clock
	retention time.Duration
	logger    *logger.Logger
}

// NewChatService creates a new chat service
func NewChatService(chat repository.ChatRepository, clock clockwork.Clock, retention time.Duration, logger *logger.Logger) *ChatService {
	return &ChatService{
		chat:      chat,
		clock:     clock,
		retention: retention,
		logger:    logger,
	}
}

// Post stores a chat message or reaction for a class
func (s *ChatService) Post(ctx context.Context, classID, voterID string, req *domain.ChatPostRequest) (*domain.ChatMessage, error) {
	kind := req.Kind
	if kind == "" {
		kind = domain.ChatKindMessage
	}
	if kind != domain.ChatKindMessage && kind != domain.ChatKindReaction {
		return nil, errors.NewValidationError("", "unknown chat item kind")
	}

	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, errors.NewValidationError("", "message body is required")
	}
	if len(body) > maxChatBodyLen {
		return nil, errors.NewValidationError("", "message body is too long")
	}

	msg := &domain.ChatMessage{
		ID:        uuid.New().String(),
		ClassID:   classID,
		VoterID:   voterID,
		Kind:      kind,
		Body:      body,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.chat.Insert(ctx, msg); err != nil {
		return nil, errors.NewUnavailableError("chat store unavailable", err)
	}

	return msg, nil
}

// Recent returns the class's messages still inside the retention window
func (s *ChatService) Recent(ctx context.Context, classID string) ([]domain.ChatMessage, error) {
	since := s.clock.Now().Add(-s.retention)
	messages, err := s.chat.ListRecent(ctx, classID, since)
	if err != nil {
		return nil, errors.NewUnavailableError("chat store unavailable", err)
	}
	return messages, nil
}
