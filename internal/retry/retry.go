// Package retry provides a reusable retry policy for external calls.
//
// Every network call site in the pipeline (page conversion, enrichment,
// embedding) is parameterized by a Policy rather than carrying its own
// ad hoc loop. A Policy states the attempt bound, the backoff schedule and
// which errors are worth retrying; Do applies it.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAttemptsExhausted wraps the last error once the attempt bound is hit.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Policy describes how a failing call is retried.
//
// The zero value is not usable; construct with the fields explicit so call
// sites document their own bounds.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int

	// BaseDelay is the wait before the second attempt.
	BaseDelay time.Duration

	// Multiplier scales the delay after each failed attempt.
	// A multiplier of 1 gives fixed pacing, 2 gives exponential backoff.
	Multiplier float64

	// Retryable reports whether an error is worth another attempt.
	// nil means every error is retryable.
	Retryable func(error) bool

	// Sleep is the wait function, replaceable in tests. nil uses a
	// context-aware sleep on the real clock.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do invokes fn until it succeeds, returns a non-retryable error, exhausts
// MaxAttempts, or ctx is done. The last error is wrapped with
// ErrAttemptsExhausted when the bound is hit.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry: MaxAttempts must be at least 1, got %d", p.MaxAttempts)
	}

	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	delay := p.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		if delay > 0 {
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}
		if p.Multiplier > 0 {
			delay = time.Duration(float64(delay) * p.Multiplier)
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, p.MaxAttempts, lastErr)
}

// Attempts returns 1..MaxAttempts as a convenience for call sites that need
// the attempt counter for audit records rather than Do's callback form.
func (p Policy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
