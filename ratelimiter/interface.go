// Package ratelimiter throttles calls to the image service per model, with
// separate token and request budgets per minute.
package ratelimiter

import (
	"context"
	"time"
)

// Limiter is a token and request budget for one model.
type Limiter interface {
	// TryConsume takes tokens and one request if both budgets allow it, and
	// takes nothing otherwise.
	TryConsume(tokens int) bool

	// TimeUntilAvailable reports the wait before TryConsume(tokens) could
	// succeed. It does not consume.
	TimeUntilAvailable(tokens int) time.Duration

	// WaitAndConsume blocks until the budget allows tokens, ctx is done or
	// maxWait (when non-zero) would be exceeded.
	WaitAndConsume(ctx context.Context, tokens int, maxWait time.Duration) error
}
