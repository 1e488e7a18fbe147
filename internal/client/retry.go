package client

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"

	"github.com/openfipe/fipe-scraper/internal/fipe"
)

// RetryPolicy decides whether a failed call is retried and how long to wait
// before the next attempt.
type RetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	multiplier  float64
}

// NewRetryPolicy builds a jittered exponential backoff policy.
func NewRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration, multiplier float64) *RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	if multiplier < 1 {
		multiplier = 2
	}
	return &RetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
		multiplier:  multiplier,
	}
}

// MaxAttempts returns the attempt budget including the first call.
func (p *RetryPolicy) MaxAttempts() int { return p.maxAttempts }

// ShouldRetry reports whether attempt (zero-based) may be retried after err.
// Only transient failures are retried; context termination never is.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts-1 {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return fipe.IsTransient(err)
}

// Backoff returns the wait before retrying attempt (zero-based). The delay
// grows as base*multiplier^attempt, capped at maxDelay. Each sample is drawn
// between the previous attempt's deterministic delay and the current one, so
// successive waits never shrink while workers sharing a policy still spread
// out. Once the cap is reached the wait is exactly maxDelay.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	delay := p.delayFor(attempt)
	floor := delay / 2
	if attempt > 0 {
		floor = p.delayFor(attempt - 1)
	}
	if floor >= delay {
		return delay
	}
	return floor + p.randomJitter(delay-floor)
}

func (p *RetryPolicy) delayFor(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(p.multiplier, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	return time.Duration(delay)
}

func (p *RetryPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
