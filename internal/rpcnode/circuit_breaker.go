package rpcnode

import (
	"log/slog"
	"sync"
	"time"
)

// circuitState is the closed set of states a circuitBreaker can be in.
type circuitState string

const (
	circuitClosed   circuitState = "closed"
	circuitOpen     circuitState = "open"
	circuitHalfOpen circuitState = "half_open"
)

const circuitBreakerHalfOpenMax = 1

// circuitBreaker trips after a run of consecutive RPC failures, so a
// misbehaving or unreachable node stops taking additional hits from every
// tick until it's had a cooldown period to recover.
//
//   - Closed: all calls pass. On failure, increment the counter; at
//     threshold, trip to Open.
//   - Open: all calls blocked. After cooldown elapses, move to Half-Open.
//   - Half-Open: allow one probe call through. Success closes the
//     breaker; failure reopens it.
type circuitBreaker struct {
	mu               sync.Mutex
	state            circuitState
	consecutiveFails int
	threshold        int
	cooldown         time.Duration
	lastFailure      time.Time
	halfOpenCount    int
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{state: circuitClosed, threshold: threshold, cooldown: cooldown}
}

func (cb *circuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case circuitClosed:
		return true
	case circuitOpen:
		if time.Since(cb.lastFailure) >= cb.cooldown {
			cb.state = circuitHalfOpen
			cb.halfOpenCount = 0
			return true
		}
		return false
	case circuitHalfOpen:
		if cb.halfOpenCount < circuitBreakerHalfOpenMax {
			cb.halfOpenCount++
			return true
		}
		return false
	default:
		return false
	}
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	previous := cb.state
	cb.consecutiveFails = 0
	cb.state = circuitClosed
	cb.halfOpenCount = 0
	if previous != circuitClosed {
		slog.Info("rpcnode circuit breaker closed after success", "previousState", previous)
	}
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	cb.lastFailure = time.Now()

	if cb.state == circuitHalfOpen {
		cb.state = circuitOpen
		cb.halfOpenCount = 0
		slog.Warn("rpcnode circuit breaker reopened from half-open", "consecutiveFails", cb.consecutiveFails)
		return
	}
	if cb.consecutiveFails >= cb.threshold {
		cb.state = circuitOpen
		slog.Warn("rpcnode circuit breaker tripped open", "consecutiveFails", cb.consecutiveFails, "threshold", cb.threshold)
	}
}

func (cb *circuitBreaker) currentState() circuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
