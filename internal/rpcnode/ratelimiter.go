package rpcnode

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"
)

// rateLimiter wraps a token bucket rate limiter guarding calls into the
// node's JSON-RPC endpoint.
type rateLimiter struct {
	limiter *rate.Limiter
}

// newRateLimiter creates a rate limiter allowing rps requests per second.
func newRateLimiter(rps int) *rateLimiter {
	return &rateLimiter{
		// Burst(1) spreads requests evenly across the second rather than
		// letting a whole second's budget fire at once.
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// wait blocks until the limiter allows another request or ctx is cancelled.
func (rl *rateLimiter) wait(ctx context.Context) error {
	if err := rl.limiter.Wait(ctx); err != nil {
		slog.Warn("rpcnode rate limiter wait cancelled", "error", err)
		return err
	}
	return nil
}
