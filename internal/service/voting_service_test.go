package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"election-core/internal/domain"
	"election-core/internal/repository"
	"election-core/pkg/errors"
	"election-core/pkg/logger"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type votingFixture struct {
	service    *VotingService
	elections  *fakeElectionRepo
	votes      *fakeVoteRepo
	candidates *fakeCandidateRepo
	clock      *clockwork.FakeClock
}

func newVotingFixture(t *testing.T) *votingFixture {
	_, redisClient := newTestRedis(t)

	elections := newFakeElectionRepo()
	candidates := newFakeCandidateRepo(
		&domain.Candidate{ID: "cand-a", ClassID: "class-3a", Name: "Anda"},
		&domain.Candidate{ID: "cand-b", ClassID: "class-3a", Name: "Boon"},
		&domain.Candidate{ID: "cand-x", ClassID: "class-3b", Name: "Xan"},
	)
	votes := newFakeVoteRepo(candidates)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	repos := &repository.Repositories{
		Election:  elections,
		Vote:      votes,
		Candidate: candidates,
	}

	service := NewVotingService(repos, redisClient, clock, logger.NewNop())

	return &votingFixture{
		service:    service,
		elections:  elections,
		votes:      votes,
		candidates: candidates,
		clock:      clock,
	}
}

func (f *votingFixture) openVoting() {
	f.elections.set(&domain.ElectionState{ClassID: "class-3a", VotingEnabled: true})
}

func TestVotingService_CastVote(t *testing.T) {
	f := newVotingFixture(t)
	ctx := context.Background()
	f.openVoting()

	resp, err := f.service.CastVote(ctx, "voter-1", "class-3a", &domain.CastVoteRequest{CandidateID: "cand-a"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.VoteID)
	assert.Equal(t, "cand-a", resp.CandidateID)
	assert.Equal(t, 1, f.candidates.votesFor("cand-a"))

	// Exactly one ledger row appeared
	count, err := f.votes.CountByClass(ctx, "class-3a")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestVotingService_CastVoteClosed(t *testing.T) {
	f := newVotingFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	tests := []struct {
		name            string
		state           *domain.ElectionState
		expectedMessage string
	}{
		{
			name:            "Never opened",
			state:           &domain.ElectionState{ClassID: "class-3a"},
			expectedMessage: "voting is not open",
		},
		{
			name: "Scheduled but not started",
			state: &domain.ElectionState{
				ClassID: "class-3a",
				StartAt: timePtr(now.Add(time.Hour)),
				EndAt:   timePtr(now.Add(2 * time.Hour)),
			},
			expectedMessage: "voting has not opened yet",
		},
		{
			name: "Window already over",
			state: &domain.ElectionState{
				ClassID: "class-3a",
				StartAt: timePtr(now.Add(-2 * time.Hour)),
				EndAt:   timePtr(now.Add(-time.Hour)),
			},
			expectedMessage: "voting has ended",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.elections.set(tt.state)

			_, err := f.service.CastVote(ctx, "voter-1", "class-3a", &domain.CastVoteRequest{CandidateID: "cand-a"})
			require.Error(t, err)

			appErr, ok := errors.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, errors.ErrorTypeConflict, appErr.Type)
			assert.Equal(t, errors.ReasonVotingClosed, appErr.Reason)
			assert.Equal(t, tt.expectedMessage, appErr.Message)

			// Nothing was recorded
			count, _ := f.votes.CountByClass(ctx, "class-3a")
			assert.Equal(t, 0, count)
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestVotingService_CastVoteDuplicate(t *testing.T) {
	f := newVotingFixture(t)
	ctx := context.Background()
	f.openVoting()

	_, err := f.service.CastVote(ctx, "voter-1", "class-3a", &domain.CastVoteRequest{CandidateID: "cand-a"})
	require.NoError(t, err)

	// Second cast, even for a different candidate, is rejected without
	// touching the first vote
	_, err = f.service.CastVote(ctx, "voter-1", "class-3a", &domain.CastVoteRequest{CandidateID: "cand-b"})
	require.Error(t, err)

	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeConflict, appErr.Type)
	assert.Equal(t, errors.ReasonAlreadyVoted, appErr.Reason)

	assert.Equal(t, 1, f.candidates.votesFor("cand-a"))
	assert.Equal(t, 0, f.candidates.votesFor("cand-b"))
	count, _ := f.votes.CountByClass(ctx, "class-3a")
	assert.Equal(t, 1, count)
}

func TestVotingService_CastVoteCandidateChecks(t *testing.T) {
	f := newVotingFixture(t)
	ctx := context.Background()
	f.openVoting()

	tests := []struct {
		name           string
		candidateID    string
		expectedReason string
	}{
		{
			name:           "Unknown candidate",
			candidateID:    "cand-nope",
			expectedReason: errors.ReasonUnknownCandidate,
		},
		{
			name:           "Candidate from another class",
			candidateID:    "cand-x",
			expectedReason: errors.ReasonCandidateClass,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.CastVote(ctx, "voter-1", "class-3a", &domain.CastVoteRequest{CandidateID: tt.candidateID})
			require.Error(t, err)

			appErr, ok := errors.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, errors.ErrorTypeConflict, appErr.Type)
			assert.Equal(t, tt.expectedReason, appErr.Reason)
		})
	}
}

func TestVotingService_ConcurrentSameVoter(t *testing.T) {
	f := newVotingFixture(t)
	ctx := context.Background()
	f.openVoting()

	const attempts = 8
	var wg sync.WaitGroup
	results := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.service.CastVote(ctx, "voter-1", "class-3a", &domain.CastVoteRequest{CandidateID: "cand-a"})
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range results {
		if err == nil {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted, "exactly one concurrent cast must win")
	assert.Equal(t, 1, f.candidates.votesFor("cand-a"))
}

func TestVotingService_TallySumInvariant(t *testing.T) {
	f := newVotingFixture(t)
	ctx := context.Background()
	f.openVoting()

	candidates := []string{"cand-a", "cand-b", "cand-a", "cand-a", "cand-b"}
	for i, candidateID := range candidates {
		voterID := fmt.Sprintf("voter-%d", i)
		_, err := f.service.CastVote(ctx, voterID, "class-3a", &domain.CastVoteRequest{CandidateID: candidateID})
		require.NoError(t, err)
	}

	tally, err := f.service.GetTally(ctx, "class-3a", true)
	require.NoError(t, err)

	ledger, err := f.votes.CountByClass(ctx, "class-3a")
	require.NoError(t, err)
	assert.Equal(t, ledger, tally.TotalVotes)
	assert.Equal(t, len(candidates), tally.TotalVotes)

	assert.Equal(t, "cand-a", tally.Entries[0].CandidateID)
	assert.Equal(t, 3, tally.Entries[0].Votes)
	assert.Equal(t, 1, tally.Entries[0].Rank)
	assert.Equal(t, 2, tally.Entries[1].Votes)
}

func TestVotingService_TallyHiddenForNonAdmin(t *testing.T) {
	f := newVotingFixture(t)
	ctx := context.Background()
	f.openVoting()

	_, err := f.service.GetTally(ctx, "class-3a", false)
	require.Error(t, err)

	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeAuthorization, appErr.Type)
	assert.Equal(t, errors.ReasonResultsHidden, appErr.Reason)

	// Admin sees it regardless
	_, err = f.service.GetTally(ctx, "class-3a", true)
	require.NoError(t, err)

	// Once revealed, everyone sees it
	f.elections.set(&domain.ElectionState{ClassID: "class-3a", ResultsVisible: true})
	tally, err := f.service.GetTally(ctx, "class-3a", false)
	require.NoError(t, err)
	assert.Equal(t, "class-3a", tally.ClassID)
}

func TestVotingService_ListCandidatesBlanksHiddenTallies(t *testing.T) {
	f := newVotingFixture(t)
	ctx := context.Background()
	f.openVoting()

	_, err := f.service.CastVote(ctx, "voter-1", "class-3a", &domain.CastVoteRequest{CandidateID: "cand-a"})
	require.NoError(t, err)

	candidates, err := f.service.ListCandidates(ctx, "class-3a", false)
	require.NoError(t, err)
	for _, c := range candidates {
		assert.Equal(t, 0, c.Votes, "hidden tallies must read zero for voters")
	}

	candidates, err = f.service.ListCandidates(ctx, "class-3a", true)
	require.NoError(t, err)
	assert.Equal(t, 1, candidates[0].Votes)
}

func TestVotingService_MyStatus(t *testing.T) {
	f := newVotingFixture(t)
	ctx := context.Background()
	f.openVoting()

	status, err := f.service.MyStatus(ctx, "class-3a", "voter-1")
	require.NoError(t, err)
	assert.False(t, status.HasVoted)

	resp, err := f.service.CastVote(ctx, "voter-1", "class-3a", &domain.CastVoteRequest{CandidateID: "cand-a"})
	require.NoError(t, err)

	status, err = f.service.MyStatus(ctx, "class-3a", "voter-1")
	require.NoError(t, err)
	assert.True(t, status.HasVoted)
	assert.Equal(t, resp.VoteID, status.VoteID)
	assert.Equal(t, "cand-a", status.CandidateID)
}
