// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package backoff provides exponential backoff with jitter for retrying operations.
package backoff

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryAfterError wraps an error with a server-dictated delay before the next
// attempt, such as a rate-limit reset. Retry waits at least Delay instead of
// the computed backoff for the attempt that produced it.
type RetryAfterError struct {
	// Delay is the minimum wait before the next attempt.
	Delay time.Duration
	// Err is the underlying error.
	Err error
}

// Error implements error.
func (r *RetryAfterError) Error() string {
	return fmt.Sprintf("%v (retry after %v)", r.Err, r.Delay)
}

// Unwrap returns the underlying error.
func (r *RetryAfterError) Unwrap() error {
	return r.Err
}

// Retry calls f repeatedly until it succeeds, returns a non-retryable error,
// or the maximum number of attempts is reached. Between attempts, it waits with
// exponential backoff and jitter.
//
// f returns the result, whether the error is retryable, and any error.
// If retryable is true and err is non-nil, Retry will wait and try again.
// If retryable is false, Retry returns immediately with the result and error.
// A retryable *RetryAfterError overrides the wait for that attempt with the
// delay the server asked for.
func Retry[T any](
	ctx context.Context,
	maxAttempts int,
	initialDelay time.Duration,
	maxDelay time.Duration,
	f func(ctx context.Context, attempt int) (T, bool, error),
) (T, error) {
	var zero T
	delay := initialDelay
	for attempt := range maxAttempts {
		result, retryable, err := f(ctx, attempt)
		if err == nil {
			return result, nil
		}
		if !retryable {
			return zero, err
		}
		// Don't wait after the last attempt.
		if attempt == maxAttempts-1 {
			return zero, fmt.Errorf("failed after %d attempts: %w", maxAttempts, err)
		}
		// Wait with jitter: random duration between delay/2 and delay.
		jitteredDelay := delay/2 + time.Duration(rand.Int64N(int64(delay/2+1)))
		var retryAfterErr *RetryAfterError
		if errors.As(err, &retryAfterErr) && retryAfterErr.Delay > jitteredDelay {
			jitteredDelay = retryAfterErr.Delay
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(jitteredDelay):
		}
		// Exponential backoff, capped at maxDelay.
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return zero, fmt.Errorf("failed after %d attempts", maxAttempts)
}
