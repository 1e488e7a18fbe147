package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openfipe/fipe-scraper/internal/fipe"
)

func TestRetryPolicy_BackoffCappedAndMonotone(t *testing.T) {
	t.Parallel()

	// Multipliers below 2 are where naive jitter could let a later sample
	// undercut an earlier one; the floor of each sample is the previous
	// attempt's deterministic delay, so the sampled waits never shrink.
	for _, multiplier := range []float64{1.5, 2} {
		maxDelay := time.Second
		p := NewRetryPolicy(10, 100*time.Millisecond, maxDelay, multiplier)

		prevDelay := time.Duration(0)
		prevBackoff := time.Duration(0)
		for attempt := 0; attempt < 10; attempt++ {
			delay := p.delayFor(attempt)
			require.GreaterOrEqual(t, delay, prevDelay, "multiplier %v attempt %d", multiplier, attempt)
			require.LessOrEqual(t, delay, maxDelay, "multiplier %v attempt %d", multiplier, attempt)
			prevDelay = delay

			backoff := p.Backoff(attempt)
			require.Greater(t, backoff, time.Duration(0))
			require.GreaterOrEqual(t, backoff, prevBackoff, "multiplier %v attempt %d", multiplier, attempt)
			require.LessOrEqual(t, backoff, maxDelay)
			prevBackoff = backoff
		}
		require.Equal(t, maxDelay, p.delayFor(9))
		require.Equal(t, maxDelay, p.Backoff(9))
	}
}

func TestRetryPolicy_ShouldRetryOnlyTransient(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(3, time.Millisecond, time.Second, 2)

	transient := fipe.Transient("op", errors.New("503"))
	permanent := fipe.Permanent("op", errors.New("404"))

	require.True(t, p.ShouldRetry(transient, 0))
	require.True(t, p.ShouldRetry(transient, 1))
	// Attempt budget exhausted.
	require.False(t, p.ShouldRetry(transient, 2))

	require.False(t, p.ShouldRetry(permanent, 0))
	require.False(t, p.ShouldRetry(nil, 0))
	require.False(t, p.ShouldRetry(context.Canceled, 0))
	require.False(t, p.ShouldRetry(context.DeadlineExceeded, 0))
}

func TestNewRetryPolicy_SanitizesInputs(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(0, 0, 0, 0)
	require.Equal(t, 1, p.MaxAttempts())
	require.LessOrEqual(t, p.Backoff(0), p.delayFor(0))
	require.Equal(t, time.Second, p.delayFor(0))
}
