package models

import "time"

// Comment is a single comment fetched from the platform. Immutable once
// fetched; the engine borrows it for the duration of analysis and never
// writes it back.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	Permalink string    `json:"permalink"`
}

// Deleted reports whether the comment body has been tombstoned by the
// platform and carries no analyzable content.
func (c Comment) Deleted() bool {
	return c.Body == "[deleted]" || c.Body == "[removed]"
}

// Verdict is the engine's classification of a comment.
type Verdict string

const (
	VerdictRemove  Verdict = "REMOVE"
	VerdictKeep    Verdict = "KEEP"
	VerdictUnknown Verdict = "UNKNOWN"
)

// TokenUsage records the token accounting for a single provider call.
// Produced by the provider, accumulated into process-wide totals by the
// orchestrator.
type TokenUsage struct {
	InputTokens   int     `json:"input_tokens"`
	OutputTokens  int     `json:"output_tokens"`
	TotalTokens   int     `json:"total_tokens"`
	EstimatedCost float64 `json:"estimated_cost"`
}
