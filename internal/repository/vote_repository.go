package repository

import (
	"context"
	"errors"
	"fmt"

	"election-core/internal/domain"
	"election-core/pkg/database"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PostgresVoteRepository struct {
	db *database.PostgresDB
}

func NewVoteRepository(db *database.PostgresDB) *PostgresVoteRepository {
	return &PostgresVoteRepository{db: db}
}

// CastVote appends the ledger row, increments the candidate tally and marks
// the voter record in one transaction. A partial effect is never observable:
// either all three writes commit or none do, which keeps
// sum(tallies) == count(votes) at every observation point.
//
// The UNIQUE (voter_id, class_id) constraint is the linearization point for
// concurrent casts from the same voter; the loser surfaces ErrDuplicateVote.
func (r *PostgresVoteRepository) CastVote(ctx context.Context, vote *domain.Vote) error {
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		insert := `
			INSERT INTO votes (id, vote_id, voter_id, candidate_id, class_id, cast_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := tx.Exec(ctx, insert,
			vote.ID, vote.VoteID, vote.VoterID, vote.CandidateID, vote.ClassID, vote.CastAt,
		); err != nil {
			return err
		}

		increment := `
			UPDATE candidates
			SET votes = votes + 1, updated_at = now()
			WHERE id = $1 AND class_id = $2
		`
		tag, err := tx.Exec(ctx, increment, vote.CandidateID, vote.ClassID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrCandidateNotFound
		}

		mark := `
			UPDATE voters
			SET voted_in_class = true, voted_for = $1, voted_at = $2
			WHERE id = $3 AND class_id = $4
		`
		if _, err := tx.Exec(ctx, mark, vote.CandidateID, vote.CastAt, vote.VoterID, vote.ClassID); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateVote
		}
		if errors.Is(err, ErrCandidateNotFound) {
			return ErrCandidateNotFound
		}
		return fmt.Errorf("failed to cast vote: %w", err)
	}

	return nil
}

// GetByVoter returns the voter's vote in a class, or nil if none
func (r *PostgresVoteRepository) GetByVoter(ctx context.Context, classID, voterID string) (*domain.Vote, error) {
	var vote domain.Vote
	query := `
		SELECT id, vote_id, voter_id, candidate_id, class_id, cast_at
		FROM votes
		WHERE class_id = $1 AND voter_id = $2
	`

	err := r.db.Pool.QueryRow(ctx, query, classID, voterID).Scan(
		&vote.ID,
		&vote.VoteID,
		&vote.VoterID,
		&vote.CandidateID,
		&vote.ClassID,
		&vote.CastAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}

	return &vote, nil
}

// CountByClass returns the number of ledger rows for a class
func (r *PostgresVoteRepository) CountByClass(ctx context.Context, classID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM votes WHERE class_id = $1`

	err := r.db.Pool.QueryRow(ctx, query, classID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}

	return count, nil
}

// DeleteByClass removes every vote of a class
func (r *PostgresVoteRepository) DeleteByClass(ctx context.Context, classID string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM votes WHERE class_id = $1`, classID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete votes: %w", err)
	}
	return tag.RowsAffected(), nil
}
