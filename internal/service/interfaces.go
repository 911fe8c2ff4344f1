package service

import (
	"context"

	"election-core/internal/domain"
)

// AuthService is the narrow contract with the identity collaborator: turn a
// bearer token into a voter id and role. Sign-up, verification and sessions
// are not this engine's business.
type AuthService interface {
	// ValidateToken validates a bearer token and returns the claims
	ValidateToken(ctx context.Context, token string) (*domain.AuthClaims, error)
}

// StatusPublisher pushes authoritative state changes into the broadcast
// mirror. Best-effort: a returned error is logged by the caller, never
// escalated, and the next transition overwrites whatever was missed.
type StatusPublisher interface {
	// Publish mirrors the full status for a class
	Publish(ctx context.Context, status domain.BroadcastStatus) error

	// Clear removes the mirrored status for a class
	Clear(ctx context.Context, classID string) error
}

// Transitioner is the slice of the lifecycle controller the clock-driven
// scheduler invokes. Both transitions validate against current state, so
// redundant calls from overlapping ticks never double-fire.
type Transitioner interface {
	SetVoting(ctx context.Context, classID string, enabled bool) (*domain.ElectionState, error)
	SetResultsVisible(ctx context.Context, classID string, visible bool) (*domain.ElectionState, error)
}

// Wiper is the sweeper's unconditional-delete path, triggered by the
// lifecycle controller when results are revealed.
type Wiper interface {
	WipeClass(ctx context.Context, classID string) error
}
