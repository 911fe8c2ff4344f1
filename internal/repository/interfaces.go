package repository

import (
	"context"
	"errors"
	"time"

	"election-core/internal/domain"
)

// Sentinel errors surfaced by repositories so services can map them to
// specific rejection reasons without inspecting driver errors.
var (
	// ErrDuplicateVote means a vote already exists for (voter, class).
	ErrDuplicateVote = errors.New("duplicate vote")
	// ErrCandidateNotFound means the candidate row vanished between the
	// precondition check and the atomic batch.
	ErrCandidateNotFound = errors.New("candidate not found")
)

// ElectionRepository is the durable election state store: one row per class,
// lazily created with defaults, partially updated, never deleted.
type ElectionRepository interface {
	// Get returns the state for a class, creating the defaults row if absent.
	Get(ctx context.Context, classID string) (*domain.ElectionState, error)

	// Update merges the patch into the stored state. Nil patch fields are
	// left untouched. The single-row update is atomic at the storage layer.
	Update(ctx context.Context, classID string, patch domain.StatePatch) error
}

// VoteRepository is the append-only vote ledger plus the paired tally
// mutation.
type VoteRepository interface {
	// CastVote appends the vote, increments the candidate tally by exactly
	// one and marks the voter record, all in a single transaction. Returns
	// ErrDuplicateVote if a vote already exists for (voter, class).
	CastVote(ctx context.Context, vote *domain.Vote) error

	// GetByVoter returns the voter's vote in a class, or nil if none.
	GetByVoter(ctx context.Context, classID, voterID string) (*domain.Vote, error)

	// CountByClass returns the number of ledger rows for a class.
	CountByClass(ctx context.Context, classID string) (int, error)

	// DeleteByClass removes every vote of a class. Used only by reset;
	// deleting from an already-empty ledger is a no-op.
	DeleteByClass(ctx context.Context, classID string) (int64, error)
}

// CandidateRepository reads the candidate directory and maintains tallies.
// Candidate CRUD itself lives outside this engine.
type CandidateRepository interface {
	// GetByID returns a candidate or nil if absent.
	GetByID(ctx context.Context, candidateID string) (*domain.Candidate, error)

	// ListByClass returns the class's candidates ordered by votes descending.
	ListByClass(ctx context.Context, classID string) ([]domain.Candidate, error)

	// ZeroTallies resets every tally in the class to zero.
	ZeroTallies(ctx context.Context, classID string) error
}

// VoterRepository maintains the voted markers on voter records.
type VoterRepository interface {
	// ClearVotedByClass clears votedInClass/votedFor/votedAt for every voter
	// of a class. Used by reset.
	ClearVotedByClass(ctx context.Context, classID string) error
}

// ChatRepository stores the time-boxed ephemeral side channel.
type ChatRepository interface {
	// Insert stores a chat message or reaction.
	Insert(ctx context.Context, msg *domain.ChatMessage) error

	// ListRecent returns class messages created at or after since, oldest
	// first.
	ListRecent(ctx context.Context, classID string, since time.Time) ([]domain.ChatMessage, error)

	// DeleteOlderThan removes class messages created before cutoff.
	DeleteOlderThan(ctx context.Context, classID string, cutoff time.Time) (int64, error)

	// DeleteByClass removes every message of a class.
	DeleteByClass(ctx context.Context, classID string) (int64, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Election  ElectionRepository
	Vote      VoteRepository
	Candidate CandidateRepository
	Voter     VoterRepository
	Chat      ChatRepository
}
