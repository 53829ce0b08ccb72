package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrMaxWaitExceeded is returned by WaitAndConsume when the required wait is
// longer than the caller allows.
var ErrMaxWaitExceeded = errors.New("rate limit wait exceeds max wait")

// RateLimiter enforces a prompt-token budget and a request budget, both
// replenished every minute. A zero budget disables that dimension.
type RateLimiter struct {
	tokens   *TokenBucket
	requests *TokenBucket
	mu       sync.Mutex
}

// Ensure RateLimiter implements Limiter.
var _ Limiter = (*RateLimiter)(nil)

// New creates a limiter allowing tokensPerMinute prompt tokens and
// requestsPerMinute calls per minute.
func New(tokensPerMinute, requestsPerMinute int) *RateLimiter {
	return newWithClock(tokensPerMinute, requestsPerMinute, time.Minute, time.Now)
}

func newWithClock(tokensPerMinute, requestsPerMinute int, interval time.Duration, now func() time.Time) *RateLimiter {
	rl := &RateLimiter{}
	if tokensPerMinute > 0 {
		rl.tokens = newTokenBucket(tokensPerMinute, tokensPerMinute, interval, now)
	}
	if requestsPerMinute > 0 {
		rl.requests = newTokenBucket(requestsPerMinute, requestsPerMinute, interval, now)
	}
	return rl
}

// TryConsume takes numTokens prompt tokens and one request. Either both are
// taken or neither is.
func (rl *RateLimiter) TryConsume(numTokens int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.tokens.hasCapacity(numTokens) || !rl.requests.hasCapacity(1) {
		return false
	}
	rl.tokens.consume(numTokens)
	rl.requests.consume(1)
	return true
}

// TimeUntilAvailable returns how long until numTokens and one request would
// both be available.
func (rl *RateLimiter) TimeUntilAvailable(numTokens int) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return max(rl.tokens.timeUntil(numTokens), rl.requests.timeUntil(1))
}

// WaitAndConsume waits until capacity is available (up to maxWait), then
// consumes it. If maxWait is 0, there is no limit on how long to wait.
func (rl *RateLimiter) WaitAndConsume(ctx context.Context, tokens int, maxWait time.Duration) error {
	for {
		wait := rl.TimeUntilAvailable(tokens)
		if wait <= 0 {
			if rl.TryConsume(tokens) {
				return nil
			}
			// Lost a race with another caller; re-evaluate.
			wait = time.Millisecond
		}
		if maxWait > 0 && wait > maxWait {
			return fmt.Errorf("%w: need %v, allowed %v", ErrMaxWaitExceeded, wait, maxWait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TokenBucket is a fixed-window bucket refilled to capacity once per
// interval. A nil bucket has unlimited capacity.
type TokenBucket struct {
	capacity       int
	remaining      int
	refillInterval time.Duration
	lastRefill     time.Time
	now            func() time.Time
}

func newTokenBucket(capacity, initial int, interval time.Duration, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:       capacity,
		remaining:      initial,
		refillInterval: interval,
		lastRefill:     now(),
		now:            now,
	}
}

func (tb *TokenBucket) refill() {
	if now := tb.now(); now.Sub(tb.lastRefill) >= tb.refillInterval {
		tb.remaining = tb.capacity
		tb.lastRefill = now
	}
}

func (tb *TokenBucket) hasCapacity(n int) bool {
	if tb == nil {
		return true
	}
	tb.refill()
	return n <= tb.remaining
}

func (tb *TokenBucket) consume(n int) {
	if tb == nil {
		return
	}
	tb.remaining -= n
}

// timeUntil reports the wait before n tokens are available. Requests larger
// than capacity wait for one full refill and then fail TryConsume, which
// WaitAndConsume bounds through maxWait or the context.
func (tb *TokenBucket) timeUntil(n int) time.Duration {
	if tb.hasCapacity(n) {
		return 0
	}
	return tb.refillInterval - tb.now().Sub(tb.lastRefill)
}
