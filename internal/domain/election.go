package domain

import (
	"time"
)

// Phase is the explicit election lifecycle phase for a class. It is derived
// from ElectionState rather than stored, so the stored booleans remain the
// single source of truth.
type Phase string

const (
	PhaseUnconfigured   Phase = "unconfigured"
	PhaseScheduled      Phase = "scheduled"
	PhaseActive         Phase = "active"
	PhaseEnded          Phase = "ended"
	PhaseResultsVisible Phase = "results_visible"
)

// ElectionState is the durable per-class election record. It is created
// lazily with all-false/nil defaults, mutated only by the lifecycle service,
// and never deleted, only reset back to defaults.
type ElectionState struct {
	ClassID        string     `json:"class_id"`
	VotingEnabled  bool       `json:"voting_enabled"`
	ResultsVisible bool       `json:"results_visible"`
	StartAt        *time.Time `json:"start_at,omitempty"`
	EndAt          *time.Time `json:"end_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Phase derives the lifecycle phase at the given instant.
// VotingEnabled wins over the schedule: a manual override is Active even
// before StartAt, and vote admission is gated on VotingEnabled alone.
func (s *ElectionState) Phase(now time.Time) Phase {
	switch {
	case s.ResultsVisible:
		return PhaseResultsVisible
	case s.VotingEnabled:
		return PhaseActive
	case s.StartAt != nil && s.EndAt != nil:
		if now.Before(*s.StartAt) {
			return PhaseScheduled
		}
		return PhaseEnded
	default:
		return PhaseUnconfigured
	}
}

// Scheduled reports whether a schedule window is configured.
func (s *ElectionState) Scheduled() bool {
	return s.StartAt != nil && s.EndAt != nil
}

// ShouldOpen reports whether the scheduler must start voting at now.
func (s *ElectionState) ShouldOpen(now time.Time) bool {
	if s.VotingEnabled || !s.Scheduled() {
		return false
	}
	return !now.Before(*s.StartAt) && now.Before(*s.EndAt)
}

// ShouldClose reports whether the scheduler must stop voting at now.
func (s *ElectionState) ShouldClose(now time.Time) bool {
	return s.VotingEnabled && s.Scheduled() && !now.Before(*s.EndAt)
}

// Schedule is a voting window. Both instants are always written together.
type Schedule struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

// StatePatch is a partial update of ElectionState. Nil fields are left
// untouched by the store, so a caller flipping VotingEnabled never clobbers
// the schedule.
type StatePatch struct {
	VotingEnabled  *bool
	ResultsVisible *bool
	Schedule       *Schedule
	ClearSchedule  bool
}

// BroadcastStatus is the denormalized projection of ElectionState pushed to
// live dashboards. It mirrors the authoritative record plus a monotonically
// increasing LastUpdated marker; on disagreement ElectionState wins.
type BroadcastStatus struct {
	ClassID        string     `json:"class_id"`
	VotingEnabled  bool       `json:"voting_enabled"`
	ResultsVisible bool       `json:"results_visible"`
	StartAt        *time.Time `json:"start_at,omitempty"`
	EndAt          *time.Time `json:"end_at,omitempty"`
	Phase          Phase      `json:"phase"`
	LastUpdated    int64      `json:"last_updated"` // unix milliseconds
}

// StatusFrom projects an ElectionState into the broadcast shape.
func StatusFrom(state *ElectionState, now time.Time) BroadcastStatus {
	return BroadcastStatus{
		ClassID:        state.ClassID,
		VotingEnabled:  state.VotingEnabled,
		ResultsVisible: state.ResultsVisible,
		StartAt:        state.StartAt,
		EndAt:          state.EndAt,
		Phase:          state.Phase(now),
		LastUpdated:    now.UnixMilli(),
	}
}

// ScheduleRequest is the admin request body for setting a voting window.
type ScheduleRequest struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

// VotingToggleRequest is the admin request body for forcing voting on/off.
type VotingToggleRequest struct {
	Enabled bool `json:"enabled"`
}

// ResultsToggleRequest is the admin request body for revealing/hiding results.
type ResultsToggleRequest struct {
	Visible bool `json:"visible"`
}
