// Package retry runs an operation until it succeeds, the attempts run out, or
// the error is not worth repeating.
package retry

import (
	"context"
	"fmt"
	"time"

	"budgetme-notifications/internal/domain"
)

const maxBackoff = 5 * time.Minute

// Policy describes how often and how patiently an operation is retried.
// MaxRetries counts retries after the first attempt.
type Policy struct {
	MaxRetries int
	Delay      time.Duration

	// Backoff returns the wait before the given retry (1-based). Defaults to
	// Linear(Delay).
	Backoff func(attempt int) time.Duration

	// Sleep waits for d or until ctx is done. Tests replace it to avoid real waits.
	Sleep func(ctx context.Context, d time.Duration) error

	// Retryable decides whether err is worth another attempt. Defaults to
	// domain.IsRetryable.
	Retryable func(err error) bool
}

// Linear waits attempt*delay, capped at five minutes.
func Linear(delay time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		d := time.Duration(attempt) * delay
		if d > maxBackoff {
			d = maxBackoff
		}
		return d
	}
}

// ExhaustedError is returned once every attempt has failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do calls op up to MaxRetries+1 times. Non-retryable errors and context
// cancellation end the loop immediately and are returned as-is.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	backoff := p.Backoff
	if backoff == nil {
		backoff = Linear(p.Delay)
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = contextSleep
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = domain.IsRetryable
	}
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}

	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			if serr := sleep(ctx, backoff(attempt)); serr != nil {
				return serr
			}
		}
		if err = op(ctx); err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return &ExhaustedError{Attempts: retries + 1, Err: err}
}

func contextSleep(ctx context.Context, d time.Duration) error {
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
