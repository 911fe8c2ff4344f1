package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"election-core/internal/domain"
	"election-core/internal/repository"
	"election-core/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newFixtureClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)

	return mr, client
}

// fakeElectionRepo is an in-memory ElectionRepository with injectable errors
type fakeElectionRepo struct {
	mu        sync.Mutex
	states    map[string]*domain.ElectionState
	getErr    error
	updateErr error
}

func newFakeElectionRepo() *fakeElectionRepo {
	return &fakeElectionRepo{states: make(map[string]*domain.ElectionState)}
}

func (f *fakeElectionRepo) Get(ctx context.Context, classID string) (*domain.ElectionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	state, ok := f.states[classID]
	if !ok {
		state = &domain.ElectionState{ClassID: classID, UpdatedAt: time.Now().UTC()}
		f.states[classID] = state
	}
	copied := *state
	return &copied, nil
}

func (f *fakeElectionRepo) Update(ctx context.Context, classID string, patch domain.StatePatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	state, ok := f.states[classID]
	if !ok {
		state = &domain.ElectionState{ClassID: classID}
		f.states[classID] = state
	}
	if patch.VotingEnabled != nil {
		state.VotingEnabled = *patch.VotingEnabled
	}
	if patch.ResultsVisible != nil {
		state.ResultsVisible = *patch.ResultsVisible
	}
	if patch.Schedule != nil {
		start, end := patch.Schedule.StartAt, patch.Schedule.EndAt
		state.StartAt, state.EndAt = &start, &end
	}
	if patch.ClearSchedule {
		state.StartAt, state.EndAt = nil, nil
	}
	state.UpdatedAt = time.Now().UTC()
	return nil
}

// set seeds a state bypassing patch semantics
func (f *fakeElectionRepo) set(state *domain.ElectionState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[state.ClassID] = state
}

// fakeCandidateRepo is an in-memory CandidateRepository
type fakeCandidateRepo struct {
	mu         sync.Mutex
	candidates map[string]*domain.Candidate
}

func newFakeCandidateRepo(candidates ...*domain.Candidate) *fakeCandidateRepo {
	f := &fakeCandidateRepo{candidates: make(map[string]*domain.Candidate)}
	for _, c := range candidates {
		f.candidates[c.ID] = c
	}
	return f
}

func (f *fakeCandidateRepo) GetByID(ctx context.Context, candidateID string) (*domain.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.candidates[candidateID]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (f *fakeCandidateRepo) ListByClass(ctx context.Context, classID string) ([]domain.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Candidate
	for _, c := range f.candidates {
		if c.ClassID == classID {
			out = append(out, *c)
		}
	}
	// votes descending, stable enough for tests
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Votes > out[i].Votes {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeCandidateRepo) ZeroTallies(ctx context.Context, classID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.candidates {
		if c.ClassID == classID {
			c.Votes = 0
		}
	}
	return nil
}

func (f *fakeCandidateRepo) votesFor(candidateID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.candidates[candidateID]; ok {
		return c.Votes
	}
	return 0
}

// fakeVoteRepo pairs the ledger append with the candidate tally increment,
// the same coupling the transactional store provides.
type fakeVoteRepo struct {
	mu         sync.Mutex
	votes      map[string]map[string]*domain.Vote // classID -> voterID -> vote
	candidates *fakeCandidateRepo
	castErr    error
}

func newFakeVoteRepo(candidates *fakeCandidateRepo) *fakeVoteRepo {
	return &fakeVoteRepo{
		votes:      make(map[string]map[string]*domain.Vote),
		candidates: candidates,
	}
}

func (f *fakeVoteRepo) CastVote(ctx context.Context, vote *domain.Vote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.castErr != nil {
		return f.castErr
	}
	class, ok := f.votes[vote.ClassID]
	if !ok {
		class = make(map[string]*domain.Vote)
		f.votes[vote.ClassID] = class
	}
	if _, exists := class[vote.VoterID]; exists {
		return repository.ErrDuplicateVote
	}
	if f.candidates != nil {
		f.candidates.mu.Lock()
		c, ok := f.candidates.candidates[vote.CandidateID]
		if !ok || c.ClassID != vote.ClassID {
			f.candidates.mu.Unlock()
			return repository.ErrCandidateNotFound
		}
		c.Votes++
		f.candidates.mu.Unlock()
	}
	copied := *vote
	class[vote.VoterID] = &copied
	return nil
}

func (f *fakeVoteRepo) GetByVoter(ctx context.Context, classID, voterID string) (*domain.Vote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if class, ok := f.votes[classID]; ok {
		if vote, ok := class[voterID]; ok {
			copied := *vote
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeVoteRepo) CountByClass(ctx context.Context, classID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.votes[classID]), nil
}

func (f *fakeVoteRepo) DeleteByClass(ctx context.Context, classID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	deleted := int64(len(f.votes[classID]))
	delete(f.votes, classID)
	return deleted, nil
}

// fakeVoterRepo records marker clears
type fakeVoterRepo struct {
	mu      sync.Mutex
	cleared []string
}

func (f *fakeVoterRepo) ClearVotedByClass(ctx context.Context, classID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, classID)
	return nil
}

// fakeChatRepo is an in-memory ChatRepository
type fakeChatRepo struct {
	mu        sync.Mutex
	messages  []domain.ChatMessage
	insertErr error
	deleteErr error
}

func (f *fakeChatRepo) Insert(ctx context.Context, msg *domain.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeChatRepo) ListRecent(ctx context.Context, classID string, since time.Time) ([]domain.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ChatMessage
	for _, m := range f.messages {
		if m.ClassID == classID && !m.CreatedAt.Before(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeChatRepo) DeleteOlderThan(ctx context.Context, classID string, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	var kept []domain.ChatMessage
	var deleted int64
	for _, m := range f.messages {
		if m.ClassID == classID && m.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	f.messages = kept
	return deleted, nil
}

func (f *fakeChatRepo) DeleteByClass(ctx context.Context, classID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	var kept []domain.ChatMessage
	var deleted int64
	for _, m := range f.messages {
		if m.ClassID == classID {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	f.messages = kept
	return deleted, nil
}

func (f *fakeChatRepo) count(classID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.messages {
		if m.ClassID == classID {
			n++
		}
	}
	return n
}

// fakePublisher records mirrored statuses
type fakePublisher struct {
	mu         sync.Mutex
	published  []domain.BroadcastStatus
	cleared    []string
	publishErr error
}

func (f *fakePublisher) Publish(ctx context.Context, status domain.BroadcastStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, status)
	return nil
}

func (f *fakePublisher) Clear(ctx context.Context, classID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, classID)
	return nil
}

func (f *fakePublisher) last() *domain.BroadcastStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.published) == 0 {
		return nil
	}
	status := f.published[len(f.published)-1]
	return &status
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

// fakeWiper records wipe calls
type fakeWiper struct {
	mu      sync.Mutex
	wiped   []string
	wipeErr error
}

func (f *fakeWiper) WipeClass(ctx context.Context, classID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.wipeErr != nil {
		return f.wipeErr
	}
	f.wiped = append(f.wiped, classID)
	return nil
}

func (f *fakeWiper) wipedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.wiped)
}
