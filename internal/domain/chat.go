package domain

import (
	"time"
)

// Ephemeral item kinds. Reactions share the chat table and retention rules.
const (
	ChatKindMessage  = "message"
	ChatKindReaction = "reaction"
)

// ChatMessage is a time-boxed side-channel item tied to a class election.
// Nothing older than the retention window survives a sweep, and nothing at
// all survives results reveal.
type ChatMessage struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	VoterID   string    `json:"voter_id"`
	Kind      string    `json:"kind"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatPostRequest is the request body for posting a message or reaction
type ChatPostRequest struct {
	Kind string `json:"kind,omitempty"` // defaults to "message"
	Body string `json:"body"`
}
