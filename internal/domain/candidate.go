package domain

import (
	"time"
)

// Candidate is a read-mostly record from the candidate directory. Candidate
// CRUD lives outside this engine; the vote ledger only checks existence and
// class membership, and mutates the tally column.
type Candidate struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	Name      string    `json:"name"`
	Bio       string    `json:"bio,omitempty"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	Votes     int       `json:"votes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Voter is the slice of the voter record this engine touches: the
// voted-in-class markers written on cast and cleared on reset.
type Voter struct {
	ID           string     `json:"id"`
	DisplayName  string     `json:"display_name,omitempty"`
	VotedInClass bool       `json:"voted_in_class"`
	VotedFor     string     `json:"voted_for,omitempty"`
	VotedAt      *time.Time `json:"voted_at,omitempty"`
}
