// Package guard protects the chatbot reply path: a fixed-window per-visitor
// rate limiter and a short-TTL cache of replies keyed by normalized message
// text. Both are injected abstractions; single-instance deployments use the
// in-memory implementations, multi-instance deployments the Redis ones.
package guard

import (
	"context"
	"fmt"
	"strings"
)

// Decision is the outcome of a rate-limit check. ResetSeconds is only
// meaningful when Allowed is false: it reports how long until the current
// window rolls over.
type Decision struct {
	Allowed      bool
	ResetSeconds int
}

// RateLimiter bounds AI requests per visitor per window.
type RateLimiter interface {
	Check(ctx context.Context, visitorID string) (Decision, error)
}

// ResponseCache short-circuits the AI call for repeated questions. A hit is
// consulted before the rate limiter and does not consume a rate-limit slot.
type ResponseCache interface {
	Get(ctx context.Context, hospitalID uint, message string) (string, bool, error)
	Set(ctx context.Context, hospitalID uint, message, reply string) error
}

// CacheKey normalizes a message for caching: questions differing only by
// case or surrounding whitespace share an entry.
func CacheKey(hospitalID uint, message string) string {
	return fmt.Sprintf("%d:%s", hospitalID, strings.ToLower(strings.TrimSpace(message)))
}
