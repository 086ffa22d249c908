// Package ai wraps the external text-generation provider behind a small
// interface so the reply generator's retry policy can be tested with a fake.
package ai

import (
	"context"
	"errors"
)

var (
	// ErrRateLimited is returned when the provider rejects a call for
	// quota reasons; the caller may retry with backoff.
	ErrRateLimited = errors.New("provider rate limit exceeded")
	// ErrUnavailable is returned for any other provider failure; the
	// caller must not retry.
	ErrUnavailable = errors.New("provider unavailable")
	// ErrMissingAPIKey is returned on first use when no API key is
	// configured. It is a fatal configuration error, surfaced lazily
	// rather than at startup.
	ErrMissingAPIKey = errors.New("generation API key not configured")
)

// Turn is one entry of the conversation history sent to the provider.
// Role is either "user" or "model"; both assistant and agent messages are
// mapped to "model" since the provider only distinguishes the two sides.
type Turn struct {
	Role    string
	Content string
}

const (
	TurnRoleUser  = "user"
	TurnRoleModel = "model"
)

// Provider generates a reply given a tenant context string, a bounded
// conversation history and the new visitor message.
type Provider interface {
	Generate(ctx context.Context, contextInfo string, history []Turn, message string) (string, error)
}
