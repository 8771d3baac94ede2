package internal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastPolicy keeps test runtime negligible.
var fastPolicy = RetryPolicy{
	MaxAttempts: 3,
	InitialWait: time.Millisecond,
	MaxWait:     5 * time.Millisecond,
	Multiplier:  2.0,
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	result, err := Retry(context.Background(), fastPolicy, func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", Transient("test", errors.New("flaky"))
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	attempts := 0
	_, err := Retry(context.Background(), fastPolicy, func() (string, error) {
		attempts++
		return "", Permanent("test", errors.New("gone"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "permanent failures must not be retried")
	assert.Equal(t, ClassPermanent, ClassOf(err))
}

func TestRetryStopsOnResourceError(t *testing.T) {
	attempts := 0
	_, err := Retry(context.Background(), fastPolicy, func() (string, error) {
		attempts++
		return "", Resource("test", errors.New("over capacity"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, ClassResource, ClassOf(err))
}

func TestRetryExhaustsBudget(t *testing.T) {
	attempts := 0
	wantErr := Transient("test", errors.New("always failing"))
	_, err := Retry(context.Background(), fastPolicy, func() (int, error) {
		attempts++
		return 0, wantErr
	})

	require.Error(t, err)
	assert.Equal(t, fastPolicy.MaxAttempts, attempts)
	assert.Equal(t, wantErr, err, "the last transient error is returned")
}

func TestRetryHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	_, err := Retry(ctx, fastPolicy, func() (int, error) {
		attempts++
		return 0, Transient("test", errors.New("flaky"))
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, attempts)
}

func TestWaitGrowsExponentiallyAndCaps(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts: 10,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     time.Second,
		Multiplier:  2.0,
	}

	assert.Equal(t, 100*time.Millisecond, p.Wait(1))
	assert.Equal(t, 200*time.Millisecond, p.Wait(2))
	assert.Equal(t, 400*time.Millisecond, p.Wait(3))
	assert.Equal(t, time.Second, p.Wait(5), "wait is capped at MaxWait")
	assert.Equal(t, time.Second, p.Wait(9))
}

func TestWaitJitterStaysNearBase(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts: 3,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     time.Second,
		Multiplier:  2.0,
		Jitter:      0.5,
	}

	for range 100 {
		wait := p.Wait(1)
		assert.GreaterOrEqual(t, wait, 75*time.Millisecond)
		assert.LessOrEqual(t, wait, 125*time.Millisecond)
	}
}
