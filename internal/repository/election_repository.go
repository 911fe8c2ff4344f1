package repository

import (
	"context"
	"fmt"

	"election-core/internal/domain"
	"election-core/pkg/database"
)

type ElectionStateRepository struct {
	db *database.PostgresDB
}

func NewElectionStateRepository(db *database.PostgresDB) *ElectionStateRepository {
	return &ElectionStateRepository{db: db}
}

// Get returns the election state for a class, lazily creating the defaults
// row on first read. The insert-if-absent keeps concurrent first reads safe.
func (r *ElectionStateRepository) Get(ctx context.Context, classID string) (*domain.ElectionState, error) {
	insert := `
		INSERT INTO election_states (class_id)
		VALUES ($1)
		ON CONFLICT (class_id) DO NOTHING
	`
	if _, err := r.db.Pool.Exec(ctx, insert, classID); err != nil {
		return nil, fmt.Errorf("failed to ensure election state: %w", err)
	}

	var state domain.ElectionState
	query := `
		SELECT class_id, voting_enabled, results_visible, start_at, end_at, updated_at
		FROM election_states
		WHERE class_id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, classID).Scan(
		&state.ClassID,
		&state.VotingEnabled,
		&state.ResultsVisible,
		&state.StartAt,
		&state.EndAt,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get election state: %w", err)
	}

	return &state, nil
}

// Update merges the patch into the stored row. Only provided fields are
// written, so flipping voting_enabled never clobbers the schedule.
func (r *ElectionStateRepository) Update(ctx context.Context, classID string, patch domain.StatePatch) error {
	set := "updated_at = now()"
	args := []interface{}{classID}
	n := 2

	if patch.VotingEnabled != nil {
		set += fmt.Sprintf(", voting_enabled = $%d", n)
		args = append(args, *patch.VotingEnabled)
		n++
	}
	if patch.ResultsVisible != nil {
		set += fmt.Sprintf(", results_visible = $%d", n)
		args = append(args, *patch.ResultsVisible)
		n++
	}
	if patch.Schedule != nil {
		set += fmt.Sprintf(", start_at = $%d, end_at = $%d", n, n+1)
		args = append(args, patch.Schedule.StartAt, patch.Schedule.EndAt)
		n += 2
	} else if patch.ClearSchedule {
		set += ", start_at = NULL, end_at = NULL"
	}

	query := fmt.Sprintf("UPDATE election_states SET %s WHERE class_id = $1", set)

	tag, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update election state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Row is created on first Get; an update without a prior Get means a
		// caller skipped the read-validate step.
		return fmt.Errorf("election state for class %s does not exist", classID)
	}

	return nil
}
