package repository

import (
	"context"
	"fmt"

	"election-core/pkg/database"
)

type PostgresVoterRepository struct {
	db *database.PostgresDB
}

func NewVoterRepository(db *database.PostgresDB) *PostgresVoterRepository {
	return &PostgresVoterRepository{db: db}
}

// ClearVotedByClass clears the voted markers for every voter of a class.
// Safe to re-run: clearing already-clear markers changes nothing.
func (r *PostgresVoterRepository) ClearVotedByClass(ctx context.Context, classID string) error {
	query := `
		UPDATE voters
		SET voted_in_class = false, voted_for = NULL, voted_at = NULL
		WHERE class_id = $1 AND voted_in_class = true
	`
	if _, err := r.db.Pool.Exec(ctx, query, classID); err != nil {
		return fmt.Errorf("failed to clear voted markers: %w", err)
	}
	return nil
}
