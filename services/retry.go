package services

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds the exponential backoff used for external calls.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// Delay returns the wait before attempt n+1 (n counts from 0).
func (p RetryPolicy) Delay(n int) time.Duration {
	d := p.BaseDelay * time.Duration(1<<n)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Retry runs op until it succeeds, returns a non-retryable error, the
// attempt cap is reached or ctx is done. Any final failure is reported as a
// DataUnavailableError for source.
func Retry[T any](ctx context.Context, policy RetryPolicy, source string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return zero, &DataUnavailableError{Source: source, Reason: "deadline exceeded", Err: err}
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		var unavailable *DataUnavailableError
		if errors.As(err, &unavailable) {
			return zero, err
		}
		if !IsRetryable(err) || i == attempts-1 {
			break
		}

		timer := time.NewTimer(policy.Delay(i))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, &DataUnavailableError{Source: source, Reason: "deadline exceeded", Err: lastErr}
		case <-timer.C:
		}
	}

	if errors.Is(lastErr, context.DeadlineExceeded) || errors.Is(lastErr, context.Canceled) {
		return zero, &DataUnavailableError{Source: source, Reason: "deadline exceeded", Err: lastErr}
	}
	return zero, &DataUnavailableError{Source: source, Reason: "service error", Err: lastErr}
}
