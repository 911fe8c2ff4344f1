package repository

import (
	"context"
	"fmt"
	"time"

	"election-core/internal/domain"
	"election-core/pkg/database"
)

type PostgresChatRepository struct {
	db *database.PostgresDB
}

func NewChatRepository(db *database.PostgresDB) *PostgresChatRepository {
	return &PostgresChatRepository{db: db}
}

// Insert stores a chat message or reaction
func (r *PostgresChatRepository) Insert(ctx context.Context, msg *domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, class_id, voter_id, kind, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.Pool.Exec(ctx, query,
		msg.ID, msg.ClassID, msg.VoterID, msg.Kind, msg.Body, msg.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}
	return nil
}

// ListRecent returns class messages created at or after since, oldest first
func (r *PostgresChatRepository) ListRecent(ctx context.Context, classID string, since time.Time) ([]domain.ChatMessage, error) {
	query := `
		SELECT id, class_id, voter_id, kind, body, created_at
		FROM chat_messages
		WHERE class_id = $1 AND created_at >= $2
		ORDER BY created_at ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, classID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.ClassID, &m.VoterID, &m.Kind, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, nil
}

// DeleteOlderThan removes class messages created before cutoff
func (r *PostgresChatRepository) DeleteOlderThan(ctx context.Context, classID string, cutoff time.Time) (int64, error) {
	query := `DELETE FROM chat_messages WHERE class_id = $1 AND created_at < $2`
	tag, err := r.db.Pool.Exec(ctx, query, classID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete aged chat messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteByClass removes every message of a class
func (r *PostgresChatRepository) DeleteByClass(ctx context.Context, classID string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM chat_messages WHERE class_id = $1`, classID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chat messages: %w", err)
	}
	return tag.RowsAffected(), nil
}
