// Package retry runs calls to flaky backends under a bounded retry policy.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy is a bounded fixed-delay retry schedule.
type Policy struct {
	// MaxAttempts counts the first call; values below 1 mean one attempt.
	MaxAttempts int
	// Delay is the pause between attempts.
	Delay time.Duration
	// AttemptTimeout bounds each attempt; zero leaves only the caller's deadline.
	AttemptTimeout time.Duration
	// Retryable decides whether an attempt error is worth another try. A nil
	// predicate retries only per-attempt timeouts.
	Retryable func(error) bool
	// OnRetry, when set, observes every failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: 15 * time.Second, AttemptTimeout: 60 * time.Second}
}

// Do calls fn until it succeeds, returns a non-retryable error, or the attempts are
// used up; the last error is returned unchanged. Cancelling ctx stops the schedule.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := max(p.MaxAttempts, 1)
	var (
		zero T
		err  error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		var v T
		v, err = call(ctx, p.AttemptTimeout, fn)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if attempt == attempts || !p.retryable(err) {
			return zero, err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if serr := sleep(ctx, p.Delay); serr != nil {
			return zero, serr
		}
	}
	return zero, err
}

func call[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(actx)
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return p.Retryable != nil && p.Retryable(err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
