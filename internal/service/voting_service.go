package service

import (
	"context"
	"encoding/json"

	"election-core/internal/domain"
	"election-core/internal/repository"
	"election-core/pkg/errors"
	"election-core/pkg/logger"
	"election-core/pkg/redis"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// VotingService is the vote ledger front: it admits or rejects casts against
// the authoritative election state and delegates the atomic
// append-plus-increment to the repository.
type VotingService struct {
	elections  repository.ElectionRepository
	votes      repository.VoteRepository
	candidates repository.CandidateRepository
	redis      *redis.Client
	clock      clockwork.Clock
	logger     *logger.Logger
}

// NewVotingService creates a new voting service
func NewVotingService(
	repos *repository.Repositories,
	redisClient *redis.Client,
	clock clockwork.Clock,
	logger *logger.Logger,
) *VotingService {
	return &VotingService{
		elections:  repos.Election,
		votes:      repos.Vote,
		candidates: repos.Candidate,
		redis:      redisClient,
		clock:      clock,
		logger:     logger,
	}
}

// CastVote handles a vote submission. Preconditions are checked in order,
// each with its own rejection reason: election active, no prior vote for
// (voter, class), candidate exists and belongs to the class. Admission is
// decided against the durable state store, never the broadcast mirror.
//
// "Already voted" is success-equivalent for the caller: a retried identical
// cast after a transient failure either re-applies exactly once or lands
// here, and the tally is correct either way.
func (s *VotingService) CastVote(ctx context.Context, voterID, classID string, req *domain.CastVoteRequest) (*domain.CastVoteResponse, error) {
	state, err := s.elections.Get(ctx, classID)
	if err != nil {
		return nil, errors.NewUnavailableError("election state store unavailable", err)
	}
	if !state.VotingEnabled {
		return nil, errors.NewConflictError(errors.ReasonVotingClosed, s.closedMessage(state))
	}

	// Fast-path duplicate check via the cached marker, durable check below.
	if s.redis != nil {
		voteKey := s.redis.KeyBuilder.KeyVoterVoted(classID, voterID)
		if exists, err := s.redis.Exists(ctx, voteKey); err == nil && exists > 0 {
			return nil, errors.NewConflictError(errors.ReasonAlreadyVoted, "you have already voted in this election")
		}
	}

	existing, err := s.votes.GetByVoter(ctx, classID, voterID)
	if err != nil {
		return nil, errors.NewUnavailableError("vote ledger unavailable", err)
	}
	if existing != nil {
		s.cacheVotedMarker(ctx, classID, voterID, existing.CandidateID)
		return nil, errors.NewConflictError(errors.ReasonAlreadyVoted, "you have already voted in this election")
	}

	candidate, err := s.candidates.GetByID(ctx, req.CandidateID)
	if err != nil {
		return nil, errors.NewUnavailableError("candidate directory unavailable", err)
	}
	if candidate == nil {
		return nil, errors.NewConflictError(errors.ReasonUnknownCandidate, "candidate does not exist")
	}
	if candidate.ClassID != classID {
		return nil, errors.NewConflictError(errors.ReasonCandidateClass, "candidate is not standing in this class")
	}

	// Idempotency guard: suppresses double-submits racing ahead of the
	// ledger's unique constraint, which remains the real backstop.
	if s.redis != nil {
		idemKey := s.redis.KeyBuilder.KeyVoteIdem(classID, voterID)
		acquired, err := s.redis.SetNX(ctx, idemKey, req.CandidateID, redis.TTLVoteIdem)
		if err == nil && !acquired {
			return nil, errors.NewConflictError(errors.ReasonAlreadyVoted, "a vote from you is already being processed")
		}
	}

	now := s.clock.Now().UTC()
	vote := &domain.Vote{
		ID:          uuid.New().String(),
		VoteID:      uuid.New().String(),
		VoterID:     voterID,
		CandidateID: req.CandidateID,
		ClassID:     classID,
		CastAt:      now,
	}

	if err := s.votes.CastVote(ctx, vote); err != nil {
		s.releaseIdem(ctx, classID, voterID)
		switch err {
		case repository.ErrDuplicateVote:
			return nil, errors.NewConflictError(errors.ReasonAlreadyVoted, "you have already voted in this election")
		case repository.ErrCandidateNotFound:
			return nil, errors.NewConflictError(errors.ReasonUnknownCandidate, "candidate does not exist")
		default:
			return nil, errors.NewUnavailableError("vote could not be recorded", err)
		}
	}

	s.cacheVotedMarker(ctx, classID, voterID, req.CandidateID)
	if s.redis != nil {
		_ = s.redis.Delete(ctx, s.redis.KeyBuilder.KeyTally(classID))
	}

	s.logger.WithFields(map[string]interface{}{
		"class_id":     classID,
		"candidate_id": req.CandidateID,
		"vote_id":      vote.VoteID,
	}).Info("Vote recorded")

	return &domain.CastVoteResponse{
		VoteID:      vote.VoteID,
		CandidateID: vote.CandidateID,
		ClassID:     classID,
		CastAt:      vote.CastAt,
		Message:     "vote recorded",
	}, nil
}

// GetTally returns the per-candidate counts, gated by resultsVisible for
// non-admin callers.
func (s *VotingService) GetTally(ctx context.Context, classID string, isAdmin bool) (*domain.Tally, error) {
	state, err := s.elections.Get(ctx, classID)
	if err != nil {
		return nil, errors.NewUnavailableError("election state store unavailable", err)
	}
	if !state.ResultsVisible && !isAdmin {
		appErr := errors.NewAuthorizationError("results are not visible yet")
		appErr.Reason = errors.ReasonResultsHidden
		return nil, appErr
	}

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, s.redis.KeyBuilder.KeyTally(classID)); err == nil && cached != "" {
			var tally domain.Tally
			if err := json.Unmarshal([]byte(cached), &tally); err == nil {
				return &tally, nil
			}
		}
	}

	candidates, err := s.candidates.ListByClass(ctx, classID)
	if err != nil {
		return nil, errors.NewUnavailableError("candidate directory unavailable", err)
	}

	tally := &domain.Tally{
		ClassID:    classID,
		Entries:    make([]domain.TallyEntry, 0, len(candidates)),
		LastUpdate: s.clock.Now().UTC(),
	}
	for _, c := range candidates {
		tally.Entries = append(tally.Entries, domain.TallyEntry{
			CandidateID: c.ID,
			Name:        c.Name,
			Votes:       c.Votes,
		})
	}
	tally.Rank()

	if s.redis != nil {
		if payload, err := json.Marshal(tally); err == nil {
			_ = s.redis.Set(ctx, s.redis.KeyBuilder.KeyTally(classID), payload, redis.TTLTally)
		}
	}

	return tally, nil
}

// ListCandidates returns the class's candidates. Tallies are blanked for
// non-admin callers until results are revealed.
func (s *VotingService) ListCandidates(ctx context.Context, classID string, isAdmin bool) ([]domain.Candidate, error) {
	state, err := s.elections.Get(ctx, classID)
	if err != nil {
		return nil, errors.NewUnavailableError("election state store unavailable", err)
	}

	candidates, err := s.candidates.ListByClass(ctx, classID)
	if err != nil {
		return nil, errors.NewUnavailableError("candidate directory unavailable", err)
	}

	if !state.ResultsVisible && !isAdmin {
		for i := range candidates {
			candidates[i].Votes = 0
		}
	}

	return candidates, nil
}

// MyStatus reports whether (and how) the voter has voted in a class
func (s *VotingService) MyStatus(ctx context.Context, classID, voterID string) (*domain.VoteStatus, error) {
	vote, err := s.votes.GetByVoter(ctx, classID, voterID)
	if err != nil {
		return nil, errors.NewUnavailableError("vote ledger unavailable", err)
	}
	if vote == nil {
		return &domain.VoteStatus{HasVoted: false}, nil
	}
	castAt := vote.CastAt
	return &domain.VoteStatus{
		HasVoted:    true,
		VoteID:      vote.VoteID,
		CandidateID: vote.CandidateID,
		CastAt:      &castAt,
	}, nil
}

// closedMessage distinguishes "not open yet" from "ended" for the caller
func (s *VotingService) closedMessage(state *domain.ElectionState) string {
	now := s.clock.Now()
	if state.Scheduled() {
		if now.Before(*state.StartAt) {
			return "voting has not opened yet"
		}
		if !now.Before(*state.EndAt) {
			return "voting has ended"
		}
	}
	return "voting is not open"
}

func (s *VotingService) cacheVotedMarker(ctx context.Context, classID, voterID, candidateID string) {
	if s.redis == nil {
		return
	}
	voteKey := s.redis.KeyBuilder.KeyVoterVoted(classID, voterID)
	_ = s.redis.Set(ctx, voteKey, candidateID, redis.TTLVoterVote)
}

func (s *VotingService) releaseIdem(ctx context.Context, classID, voterID string) {
	if s.redis == nil {
		return
	}
	// Free the guard so a retry after a transient failure is not locked out.
	_ = s.redis.Delete(ctx, s.redis.KeyBuilder.KeyVoteIdem(classID, voterID))
}
