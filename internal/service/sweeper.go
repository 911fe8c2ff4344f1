package service

import (
	"context"
	"sync"
	"time"

	"election-core/internal/repository"
	"election-core/pkg/logger"

	"github.com/jonboulle/clockwork"
)

// Sweeper garbage-collects the ephemeral side channel: a periodic pass
// deletes chat items older than the retention window, and WipeClass clears a
// class outright when results are revealed. Both paths are best-effort
// background maintenance; a failed pass is logged and the next one catches
// up, and delete-if-present makes every pass idempotent.
type Sweeper struct {
	chat      repository.ChatRepository
	clock     clockwork.Clock
	interval  time.Duration
	retention time.Duration
	logger    *logger.Logger

	mu        sync.Mutex
	watched   map[string]bool
	stopCh    chan struct{}
	isRunning bool
}

// NewSweeper creates a new retention sweeper
func NewSweeper(chat repository.ChatRepository, clock clockwork.Clock, interval, retention time.Duration, logger *logger.Logger) *Sweeper {
	return &Sweeper{
		chat:      chat,
		clock:     clock,
		interval:  interval,
		retention: retention,
		logger:    logger,
		watched:   make(map[string]bool),
		stopCh:    make(chan struct{}),
	}
}

// Watch registers a class for periodic sweeps
func (s *Sweeper) Watch(classID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watched[classID] = true
}

// Unwatch removes a class from periodic sweeps
func (s *Sweeper) Unwatch(classID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watched, classID)
}

// Start begins the periodic sweep loop
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	s.isRunning = true
	// Re-arm the stop channel; the previous one is closed if the sweeper
	// was stopped before.
	s.stopCh = make(chan struct{})

	go s.run(ctx, s.stopCh)
	s.logger.WithFields(map[string]interface{}{
		"interval":  s.interval.String(),
		"retention": s.retention.String(),
	}).Info("Retention sweeper started")
	return nil
}

// Stop halts the sweep loop
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}
	s.isRunning = false
	close(s.stopCh)

	s.logger.Info("Retention sweeper stopped")
	return nil
}

func (s *Sweeper) run(ctx context.Context, stopCh <-chan struct{}) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			s.SweepOnce(ctx)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// SweepOnce runs a single aged-out deletion pass over every watched class
func (s *Sweeper) SweepOnce(ctx context.Context) {
	s.mu.Lock()
	classes := make([]string, 0, len(s.watched))
	for classID := range s.watched {
		classes = append(classes, classID)
	}
	s.mu.Unlock()

	cutoff := s.clock.Now().Add(-s.retention)
	for _, classID := range classes {
		deleted, err := s.chat.DeleteOlderThan(ctx, classID, cutoff)
		if err != nil {
			s.logger.WithError(err).WithField("class_id", classID).Warn("Chat sweep failed")
			continue
		}
		if deleted > 0 {
			s.logger.WithFields(map[string]interface{}{
				"class_id": classID,
				"deleted":  deleted,
			}).Debug("Swept aged chat items")
		}
	}
}

// WipeClass deletes every ephemeral item of a class unconditionally, not
// just the aged-out ones. Invoked when results become visible.
func (s *Sweeper) WipeClass(ctx context.Context, classID string) error {
	deleted, err := s.chat.DeleteByClass(ctx, classID)
	if err != nil {
		return err
	}
	s.logger.WithFields(map[string]interface{}{
		"class_id": classID,
		"deleted":  deleted,
	}).Info("Wiped chat for class")
	return nil
}
