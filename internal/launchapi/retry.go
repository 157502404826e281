package launchapi

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy controls the exponential backoff applied to retryable fetch
// failures. The delay starts at InitialDelay and doubles (BackoffFactor 2)
// after every failed attempt, capped at MaxDelay.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy matches the fetcher's documented behavior: up to three
// retries starting from a 500ms delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// retry runs fn until it succeeds, fails with a non-retryable error, exhausts
// the retry budget, or the context is cancelled. Cancellation during a
// backoff sleep surfaces as ErrCancelled so callers can tell shutdown noise
// from real failures.
func retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	delay := policy.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}
		if attempt == policy.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * policy.BackoffFactor)
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	return fmt.Errorf("launchapi: max retries exceeded (%d): %w", policy.MaxRetries, lastErr)
}
