package internal

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy describes retry behavior as a value instead of control flow,
// so callers can inject it and tests can exercise it in isolation.
type RetryPolicy struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
	// Jitter is the fraction of each wait that is randomized (0 disables it).
	Jitter float64
}

// DefaultRetryPolicy suits flaky HTTP calls like the captions endpoint.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 5,
	InitialWait: 500 * time.Millisecond,
	MaxWait:     10 * time.Second,
	Multiplier:  2.0,
	Jitter:      0.25,
}

// Wait returns the backoff before the given retry. attempt is 1-based: the
// wait after the first failed attempt is Wait(1).
func (p RetryPolicy) Wait(attempt int) time.Duration {
	wait := time.Duration(float64(p.InitialWait) * math.Pow(p.Multiplier, float64(attempt-1)))
	if wait > p.MaxWait {
		wait = p.MaxWait
	}
	if p.Jitter > 0 {
		spread := p.Jitter * float64(wait)
		wait = time.Duration(float64(wait) - spread/2 + rand.Float64()*spread)
	}
	return wait
}

// Retry runs fn up to MaxAttempts times, sleeping between attempts with
// exponential backoff. Only transient failures are retried; permanent and
// resource failures return immediately, as does context cancellation.
// Exhausting the budget returns the last transient error.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return zero, err
		}

		if attempt < p.MaxAttempts {
			wait := p.Wait(attempt)
			slog.Debug("retrying", slog.Int("attempt", attempt), slog.Duration("wait", wait), slog.Any("error", err))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}
	return zero, lastErr
}
