package domain

import (
	"time"
)

// Vote is one accepted cast. Append-only: never updated, deleted only by a
// class reset. At most one vote exists per (voter, class) per election cycle.
type Vote struct {
	ID          string    `json:"id"`
	VoteID      string    `json:"vote_id"`
	VoterID     string    `json:"voter_id"`
	CandidateID string    `json:"candidate_id"`
	ClassID     string    `json:"class_id"`
	CastAt      time.Time `json:"cast_at"`
}

// CastVoteRequest is the voter-facing request body
type CastVoteRequest struct {
	CandidateID string `json:"candidate_id"`
}

// CastVoteResponse is returned after an accepted cast
type CastVoteResponse struct {
	VoteID      string    `json:"vote_id"`
	CandidateID string    `json:"candidate_id"`
	ClassID     string    `json:"class_id"`
	CastAt      time.Time `json:"cast_at"`
	Message     string    `json:"message"`
}

// VoteStatus reports whether (and how) a voter has voted in a class
type VoteStatus struct {
	HasVoted    bool       `json:"has_voted"`
	VoteID      string     `json:"vote_id,omitempty"`
	CandidateID string     `json:"candidate_id,omitempty"`
	CastAt      *time.Time `json:"cast_at,omitempty"`
}

// TallyEntry is one candidate's running count in the results view
type TallyEntry struct {
	CandidateID string  `json:"candidate_id"`
	Name        string  `json:"name"`
	Votes       int     `json:"votes"`
	Percentage  float64 `json:"percentage"`
	Rank        int     `json:"rank"`
}

// Tally is the per-class results view. The invariant is that the sum of
// entry votes equals the number of ledger rows for the class at every
// observation point.
type Tally struct {
	ClassID    string       `json:"class_id"`
	Entries    []TallyEntry `json:"entries"`
	TotalVotes int          `json:"total_votes"`
	LastUpdate time.Time    `json:"last_update"`
}

// Rank orders entries by votes descending (name ascending on ties), fills
// ranks and percentages, and recomputes the total.
func (t *Tally) Rank() {
	total := 0
	for _, e := range t.Entries {
		total += e.Votes
	}
	t.TotalVotes = total

	for i := range t.Entries {
		if total > 0 {
			t.Entries[i].Percentage = float64(t.Entries[i].Votes) * 100 / float64(total)
		} else {
			t.Entries[i].Percentage = 0
		}
	}

	// Entries arrive ordered from the store; ranks are positional with ties
	// sharing the higher rank.
	for i := range t.Entries {
		if i > 0 && t.Entries[i].Votes == t.Entries[i-1].Votes {
			t.Entries[i].Rank = t.Entries[i-1].Rank
			continue
		}
		t.Entries[i].Rank = i + 1
	}
}
