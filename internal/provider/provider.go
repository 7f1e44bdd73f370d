// Package provider abstracts the LLM backends that judge comments. Each
// backend returns the raw model response plus token accounting; verdict
// extraction is the caller's concern.
package provider

import (
	"context"

	"github.com/modwatch/modwatch/internal/models"
)

// Result is a completed analysis call.
type Result struct {
	Response string
	Usage    models.TokenUsage
}

// Provider is a single LLM backend.
type Provider interface {
	// Analyze sends the comment with the system prompt and returns the
	// model's full response.
	Analyze(ctx context.Context, systemPrompt, comment string) (Result, error)

	// CheckHealth verifies the backend is reachable and the configured
	// model is usable.
	CheckHealth(ctx context.Context) error

	// Name identifies the backend in logs and metrics.
	Name() string
}

// EstimateTokens approximates a token count for backends that do not report
// usage, at roughly four characters per token with a floor of one.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}
