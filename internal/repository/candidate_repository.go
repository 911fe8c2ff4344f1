package repository

import (
	"context"
	"fmt"

	"election-core/internal/domain"
	"election-core/pkg/database"

	"github.com/jackc/pgx/v5"
)

type PostgresCandidateRepository struct {
	db *database.PostgresDB
}

func NewCandidateRepository(db *database.PostgresDB) *PostgresCandidateRepository {
	return &PostgresCandidateRepository{db: db}
}

// GetByID returns a candidate or nil if absent
func (r *PostgresCandidateRepository) GetByID(ctx context.Context, candidateID string) (*domain.Candidate, error) {
	var candidate domain.Candidate
	query := `
		SELECT id, class_id, name, bio, photo_url, votes, created_at, updated_at
		FROM candidates
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, candidateID).Scan(
		&candidate.ID,
		&candidate.ClassID,
		&candidate.Name,
		&candidate.Bio,
		&candidate.PhotoURL,
		&candidate.Votes,
		&candidate.CreatedAt,
		&candidate.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}

	return &candidate, nil
}

// ListByClass returns the class's candidates ordered by votes descending,
// name ascending on ties. The tally reads the same rows the atomic cast
// batch writes.
func (r *PostgresCandidateRepository) ListByClass(ctx context.Context, classID string) ([]domain.Candidate, error) {
	query := `
		SELECT id, class_id, name, bio, photo_url, votes, created_at, updated_at
		FROM candidates
		WHERE class_id = $1
		ORDER BY votes DESC, name ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	var candidates []domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		err := rows.Scan(
			&c.ID,
			&c.ClassID,
			&c.Name,
			&c.Bio,
			&c.PhotoURL,
			&c.Votes,
			&c.CreatedAt,
			&c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}

	return candidates, nil
}

// ZeroTallies resets every tally in the class to zero. Re-running against an
// already-zeroed class is a no-op.
func (r *PostgresCandidateRepository) ZeroTallies(ctx context.Context, classID string) error {
	query := `UPDATE candidates SET votes = 0, updated_at = now() WHERE class_id = $1 AND votes <> 0`
	if _, err := r.db.Pool.Exec(ctx, query, classID); err != nil {
		return fmt.Errorf("failed to zero tallies: %w", err)
	}
	return nil
}
