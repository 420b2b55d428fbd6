package llm

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig holds retry configuration for generation requests.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts per call, across models.
	MaxAttempts int

	// BackoffBase is the delay before the first retry.
	BackoffBase time.Duration

	// MaxBackoff caps any single delay.
	MaxBackoff time.Duration

	// Jitter is the fractional spread applied to each delay, in 0..1.
	Jitter float64
}

// DefaultRetryConfig returns the stock retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BackoffBase: time.Second,
		MaxBackoff:  30 * time.Second,
		Jitter:      0.25,
	}
}

// ComputeDelay returns the backoff before retry n (zero-based):
// min(maxDelay, base * 2^n * (1 + u)) with u uniform in [-jitter, +jitter].
func ComputeDelay(n int, base, maxDelay time.Duration, jitter float64) time.Duration {
	return computeDelay(n, base, maxDelay, jitter, rand.Float64()*2-1)
}

// computeDelay is ComputeDelay with the random draw r in [-1, 1] supplied.
func computeDelay(n int, base, maxDelay time.Duration, jitter, r float64) time.Duration {
	if n < 0 {
		n = 0
	}
	jitter = math.Max(0, math.Min(1, jitter))

	d := float64(base) * math.Pow(2, float64(n)) * (1 + jitter*r)
	if d > float64(maxDelay) {
		return maxDelay
	}
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepContext is the default SleepFunc.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
