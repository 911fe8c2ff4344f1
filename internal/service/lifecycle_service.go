package service

import (
	"context"
	"sync"
	"time"

	"election-core/internal/domain"
	"election-core/internal/repository"
	"election-core/pkg/errors"
	"election-core/pkg/logger"
	"election-core/pkg/redis"

	"github.com/jonboulle/clockwork"
)

// LifecycleService is the only writer of ElectionState. Every transition
// re-reads current state before mutating, so redundant or retried calls are
// safe, and every committed change is mirrored to the broadcaster.
type LifecycleService struct {
	elections  repository.ElectionRepository
	votes      repository.VoteRepository
	candidates repository.CandidateRepository
	voters     repository.VoterRepository
	chat       repository.ChatRepository
	publisher  StatusPublisher
	wiper      Wiper
	redis      *redis.Client
	clock      clockwork.Clock
	logger     *logger.Logger

	// Transitions for one class are serialized; classes are independent.
	classMu sync.Mutex
	classes map[string]*sync.Mutex
}

// NewLifecycleService creates the lifecycle controller
func NewLifecycleService(
	repos *repository.Repositories,
	publisher StatusPublisher,
	wiper Wiper,
	redisClient *redis.Client,
	clock clockwork.Clock,
	logger *logger.Logger,
) *LifecycleService {
	return &LifecycleService{
		elections:  repos.Election,
		votes:      repos.Vote,
		candidates: repos.Candidate,
		voters:     repos.Voter,
		chat:       repos.Chat,
		publisher:  publisher,
		wiper:      wiper,
		redis:      redisClient,
		clock:      clock,
		logger:     logger,
		classes:    make(map[string]*sync.Mutex),
	}
}

// lockClass serializes transitions per class
func (s *LifecycleService) lockClass(classID string) func() {
	s.classMu.Lock()
	mu, ok := s.classes[classID]
	if !ok {
		mu = &sync.Mutex{}
		s.classes[classID] = mu
	}
	s.classMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// GetStatus returns the authoritative election state for a class, creating
// the defaults row on first read.
func (s *LifecycleService) GetStatus(ctx context.Context, classID string) (*domain.ElectionState, error) {
	state, err := s.elections.Get(ctx, classID)
	if err != nil {
		return nil, errors.NewUnavailableError("election state store unavailable", err)
	}
	return state, nil
}

// SetSchedule configures the voting window. Rejected while voting is live,
// when the window is inverted, or when the start is already in the past.
// Both instants are written atomically.
func (s *LifecycleService) SetSchedule(ctx context.Context, classID string, startAt, endAt time.Time) (*domain.ElectionState, error) {
	unlock := s.lockClass(classID)
	defer unlock()

	if !endAt.After(startAt) {
		return nil, errors.NewValidationError(errors.ReasonBadSchedule, "end of voting must be after the start")
	}
	now := s.clock.Now()
	if startAt.Before(now) {
		return nil, errors.NewValidationError(errors.ReasonBadSchedule, "voting cannot be scheduled to start in the past")
	}

	state, err := s.elections.Get(ctx, classID)
	if err != nil {
		return nil, errors.NewUnavailableError("election state store unavailable", err)
	}
	if state.VotingEnabled {
		return nil, errors.NewValidationError(errors.ReasonScheduleLocked, "cannot change schedule while voting is active")
	}

	patch := domain.StatePatch{Schedule: &domain.Schedule{StartAt: startAt, EndAt: endAt}}
	if err := s.elections.Update(ctx, classID, patch); err != nil {
		return nil, errors.NewUnavailableError("election state store unavailable", err)
	}

	state, err = s.elections.Get(ctx, classID)
	if err != nil {
		return nil, errors.NewUnavailableError("election state store unavailable", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"class_id": classID,
		"start_at": startAt,
		"end_at":   endAt,
	}).Info("Voting schedule set")

	s.publish(ctx, state)
	return state, nil
}

// SetVoting forces voting on or off. A call that matches current state is a
// no-op, which makes the clock's redundant per-tick invocations harmless.
func (s *LifecycleService) SetVoting(ctx context.Context, classID string, enabled bool) (*domain.ElectionState, error) {
	unlock := s.lockClass(classID)
	defer unlock()

	state, err := s.elections.Get(ctx, classID)
	if err != nil {
		return nil, errors.NewUnavailableError("election state store unavailable", err)
	}
	if state.VotingEnabled == enabled {
		return state, nil
	}

	patch := domain.StatePatch{VotingEnabled: &enabled}
	if enabled && state.ResultsVisible {
		// Reopening voting always re-hides tallies.
		hidden := false
		patch.ResultsVisible = &hidden
	}
	if err := s.elections.Update(ctx, classID, patch); err != nil {
		return nil, errors.NewUnavailableError("election state store unavailable", err)
	}

	state, err = s.elections.Get(ctx, classID)
	if err != nil {
		return nil, errors.NewUnavailableError("election state store unavailable", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"class_id": classID,
		"enabled":  enabled,
	}).Info("Voting toggled")

	s.publish(ctx, state)
	return state, nil
}

// SetResultsVisible reveals or hides the tallies. Revealing is rejected
// while voting is live; hiding again after an auto-reveal is allowed.
// Revealing wipes the ephemeral side channel for the class.
func (s *LifecycleService) SetResultsVisible(ctx context.Context, classID string, visible bool) (*domain.ElectionState, error) {
	unlock := s.lockClass(classID)
	defer unlock()

	state, err := s.elections.Get(ctx, classID)
	if err != nil {
		return nil, errors.NewUnavailableError("election state store unavailable", err)
	}
	if visible && state.VotingEnabled {
		return nil, errors.NewValidationError(errors.ReasonResultsLocked, "cannot reveal results while voting is active")
	}
	if state.ResultsVisible == visible {
		return state, nil
	}

	patch := domain.StatePatch{ResultsVisible: &visible}
	if err := s.elections.Update(ctx, classID, patch); err != nil {
		return nil, errors.NewUnavailableError("election state store unavailable", err)
	}

	state, err = s.elections.Get(ctx, classID)
	if err != nil {
		return nil, errors.NewUnavailableError("election state store unavailable", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"class_id": classID,
		"visible":  visible,
	}).Info("Results visibility toggled")

	s.publish(ctx, state)

	if visible && s.wiper != nil {
		// Reveal wipes all ephemeral items unconditionally. Best-effort:
		// a failed wipe is retried by the periodic sweep.
		if err := s.wiper.WipeClass(ctx, classID); err != nil {
			s.logger.WithError(err).WithField("class_id", classID).Warn("Chat wipe on reveal failed")
		}
	}

	return state, nil
}

// Reset returns a class to its unconfigured default: tallies zeroed, ledger
// emptied, chat wiped, voter markers cleared, schedule and flags cleared,
// broadcast mirror dropped. Every sub-step is idempotent, so an interrupted
// reset can simply be re-run.
func (s *LifecycleService) Reset(ctx context.Context, classID string) (*domain.ElectionState, error) {
	unlock := s.lockClass(classID)
	defer unlock()

	if err := s.candidates.ZeroTallies(ctx, classID); err != nil {
		return nil, errors.NewUnavailableError("failed to zero tallies", err)
	}

	deleted, err := s.votes.DeleteByClass(ctx, classID)
	if err != nil {
		return nil, errors.NewUnavailableError("failed to clear vote ledger", err)
	}

	wiped, err := s.chat.DeleteByClass(ctx, classID)
	if err != nil {
		return nil, errors.NewUnavailableError("failed to clear chat", err)
	}

	if err := s.voters.ClearVotedByClass(ctx, classID); err != nil {
		return nil, errors.NewUnavailableError("failed to clear voter markers", err)
	}

	off := false
	patch := domain.StatePatch{
		VotingEnabled:  &off,
		ResultsVisible: &off,
		ClearSchedule:  true,
	}
	if err := s.elections.Update(ctx, classID, patch); err != nil {
		return nil, errors.NewUnavailableError("election state store unavailable", err)
	}

	if err := s.publisher.Clear(ctx, classID); err != nil {
		s.logger.WithError(err).WithField("class_id", classID).Warn("Failed to clear broadcast status")
	}
	if s.redis != nil {
		// Drop cached voter markers and tallies; the durable store is
		// already clean so stale cache would only resurrect "already voted".
		if err := s.redis.InvalidatePattern(ctx, s.redis.KeyBuilder.KeyClassVoterPattern(classID)); err != nil {
			s.logger.WithError(err).Warn("Failed to invalidate voter cache")
		}
		if err := s.redis.InvalidatePattern(ctx, s.redis.KeyBuilder.KeyClassIdemPattern(classID)); err != nil {
			s.logger.WithError(err).Warn("Failed to invalidate idempotency guards")
		}
		if err := s.redis.Delete(ctx, s.redis.KeyBuilder.KeyTally(classID)); err != nil {
			s.logger.WithError(err).Warn("Failed to invalidate tally cache")
		}
	}

	state, err := s.elections.Get(ctx, classID)
	if err != nil {
		return nil, errors.NewUnavailableError("election state store unavailable", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"class_id":      classID,
		"votes_deleted": deleted,
		"chat_wiped":    wiped,
	}).Info("Election reset")

	s.publish(ctx, state)
	return state, nil
}

// publish mirrors a committed state change. Failures are logged, never
// escalated: the mirror self-heals on the next transition.
func (s *LifecycleService) publish(ctx context.Context, state *domain.ElectionState) {
	status := domain.StatusFrom(state, s.clock.Now())
	if err := s.publisher.Publish(ctx, status); err != nil {
		s.logger.WithError(err).WithField("class_id", state.ClassID).Warn("Status broadcast failed")
	}
}
