package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy bounds repeated attempts of one operation.
type RetryPolicy struct {
	// Attempts is the total number of tries including the first. Default: 3.
	Attempts int

	// Delay is the fixed pause between attempts. Default: 1s.
	Delay time.Duration

	// AttemptTimeout bounds each individual attempt. Default: 30s.
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy is the synthesis policy: three attempts, one second apart,
// each limited to thirty seconds.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Delay: time.Second, AttemptTimeout: 30 * time.Second}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultRetryPolicy.Attempts
	}
	if p.Delay <= 0 {
		p.Delay = DefaultRetryPolicy.Delay
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = DefaultRetryPolicy.AttemptTimeout
	}
	return p
}

// permanentError marks an error that must not be retried.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that [Retry] returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn until it succeeds, returns a [Permanent] error, the attempts
// are exhausted, or ctx is done. Each call receives a child context carrying
// the per-attempt timeout. The last attempt's error is returned, wrapped with
// the attempt count.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	_, err := RetryValue(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryValue is [Retry] for operations that produce a value.
func RetryValue[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	policy = policy.withDefaults()
	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, policy.AttemptTimeout)
		v, err := fn(attemptCtx)
		cancel()
		if err == nil {
			return v, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		lastErr = err
		if ctx.Err() != nil {
			return zero, fmt.Errorf("retry: attempt %d/%d: %w", attempt, policy.Attempts, errors.Join(ctx.Err(), err))
		}
		if attempt == policy.Attempts {
			break
		}

		slog.Debug("retrying after failed attempt", "attempt", attempt, "of", policy.Attempts, "err", err)
		timer := time.NewTimer(policy.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry: attempt %d/%d: %w", attempt, policy.Attempts, errors.Join(ctx.Err(), err))
		case <-timer.C:
		}
	}
	return zero, fmt.Errorf("retry: %d attempts failed: %w", policy.Attempts, lastErr)
}
