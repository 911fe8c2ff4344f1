package service

import (
	"context"
	"sync"
	"time"

	"election-core/internal/repository"
	"election-core/pkg/logger"

	"github.com/jonboulle/clockwork"
)

// Scheduler is the sole driver of automatic phase transitions: every tick it
// compares wall-clock time to each watched class's schedule and invokes the
// lifecycle controller. Transitions are idempotent, so overlapping ticks or
// a second scheduler instance never double-fire.
type Scheduler struct {
	lifecycle Transitioner
	elections repository.ElectionRepository
	clock     clockwork.Clock
	tick      time.Duration
	logger    *logger.Logger

	mu            sync.Mutex
	watched       map[string]bool
	inFlight      map[string]bool
	pendingReveal map[string]bool
	stopCh        chan struct{}
	isRunning     bool
}

// NewScheduler creates a new clock scheduler
func NewScheduler(lifecycle Transitioner, elections repository.ElectionRepository, clock clockwork.Clock, tick time.Duration, logger *logger.Logger) *Scheduler {
	return &Scheduler{
		lifecycle:     lifecycle,
		elections:     elections,
		clock:         clock,
		tick:          tick,
		logger:        logger,
		watched:       make(map[string]bool),
		inFlight:      make(map[string]bool),
		pendingReveal: make(map[string]bool),
		stopCh:        make(chan struct{}),
	}
}

// Watch registers a class for clock-driven transitions
func (s *Scheduler) Watch(classID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watched[classID] = true
}

// Unwatch removes a class from the clock's purview and drops any carried
// transition state, so a class re-registered after a reset starts clean
// instead of inheriting an unfinished reveal.
func (s *Scheduler) Unwatch(classID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watched, classID)
	delete(s.pendingReveal, classID)
	delete(s.inFlight, classID)
}

// Start begins the tick loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	s.isRunning = true
	// Re-arm the stop channel; the previous one is closed if the scheduler
	// was stopped before.
	s.stopCh = make(chan struct{})

	go s.run(ctx, s.stopCh)
	s.logger.WithField("tick", s.tick.String()).Info("Clock scheduler started")
	return nil
}

// Stop halts the tick loop
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}
	s.isRunning = false
	close(s.stopCh)

	s.logger.Info("Clock scheduler stopped")
	return nil
}

func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}) {
	ticker := s.clock.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			s.tickOnce(ctx)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tickOnce dispatches one evaluation per watched class. Evaluations run off
// the tick goroutine behind an in-flight guard, so a slow store can never
// stall the tick period or pile up duplicate work for one class.
func (s *Scheduler) tickOnce(ctx context.Context) {
	s.mu.Lock()
	classes := make([]string, 0, len(s.watched))
	for classID := range s.watched {
		if s.inFlight[classID] {
			continue
		}
		s.inFlight[classID] = true
		classes = append(classes, classID)
	}
	s.mu.Unlock()

	for _, classID := range classes {
		go func(classID string) {
			defer func() {
				s.mu.Lock()
				delete(s.inFlight, classID)
				s.mu.Unlock()
			}()
			s.evaluate(ctx, classID)
		}(classID)
	}
}

// evaluate applies the schedule to one class: open voting inside the window,
// close it and reveal results past the end.
func (s *Scheduler) evaluate(ctx context.Context, classID string) {
	if s.takePendingReveal(classID) {
		// A previous tick stopped voting but its reveal failed; finish the
		// pair before looking at the schedule again.
		if !s.reveal(ctx, classID) {
			return
		}
	}

	state, err := s.elections.Get(ctx, classID)
	if err != nil {
		s.logger.WithError(err).WithField("class_id", classID).Warn("Scheduler could not read election state")
		return
	}

	now := s.clock.Now()
	switch {
	case state.ShouldOpen(now):
		if _, err := s.lifecycle.SetVoting(ctx, classID, true); err != nil {
			s.logger.WithError(err).WithField("class_id", classID).Warn("Scheduled voting start failed")
			return
		}
		s.logger.WithField("class_id", classID).Info("Voting opened by schedule")

	case state.ShouldClose(now):
		if _, err := s.lifecycle.SetVoting(ctx, classID, false); err != nil {
			s.logger.WithError(err).WithField("class_id", classID).Warn("Scheduled voting stop failed")
			return
		}
		if !s.reveal(ctx, classID) {
			return
		}
		s.logger.WithField("class_id", classID).Info("Voting closed by schedule, results revealed")
	}
}

// reveal makes results visible, remembering the class for a retry when the
// store is unavailable. Only a failed automatic reveal is retried; an admin
// hiding results again after a successful reveal is left alone.
func (s *Scheduler) reveal(ctx context.Context, classID string) bool {
	if _, err := s.lifecycle.SetResultsVisible(ctx, classID, true); err != nil {
		s.logger.WithError(err).WithField("class_id", classID).Warn("Automatic results reveal failed")
		s.mu.Lock()
		s.pendingReveal[classID] = true
		s.mu.Unlock()
		return false
	}
	return true
}

func (s *Scheduler) takePendingReveal(classID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pendingReveal[classID] {
		return false
	}
	delete(s.pendingReveal, classID)
	return true
}
