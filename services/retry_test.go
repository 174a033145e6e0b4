package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Delay(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 200*time.Millisecond, p.Delay(0))
	assert.Equal(t, 400*time.Millisecond, p.Delay(1))
	assert.Equal(t, 1600*time.Millisecond, p.Delay(3))
	assert.Equal(t, 2*time.Second, p.Delay(4))
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	v, err := Retry(context.Background(), fastRetry(), "market data", func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, &ExternalServiceError{Service: "market data", Retryable: true, Err: errors.New("503")}
		}
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastRetry(), "market data", func(context.Context) (int, error) {
		calls++
		return 0, &ExternalServiceError{Service: "market data", StatusCode: 401, Err: errors.New("unauthorized")}
	})
	assert.Equal(t, 1, calls)

	var du *DataUnavailableError
	require.True(t, errors.As(err, &du))
	assert.Equal(t, "service error", du.Reason)
	assert.Equal(t, "market data", du.Source)

	var ext *ExternalServiceError
	assert.True(t, errors.As(err, &ext), "original error stays reachable")
}

func TestRetry_AttemptCap(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastRetry(), "forecast", func(context.Context) (int, error) {
		calls++
		return 0, &ExternalServiceError{Service: "forecast", Retryable: true, Err: errors.New("503")}
	})
	assert.Equal(t, 3, calls)
	var du *DataUnavailableError
	require.True(t, errors.As(err, &du))
}

func TestRetry_ContextExpiry(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	slow := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: time.Second}
	start := time.Now()
	_, err := Retry(ctx, slow, "sentiment", func(context.Context) (int, error) {
		return 0, &ExternalServiceError{Service: "sentiment", Retryable: true, Err: errors.New("503")}
	})
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	var du *DataUnavailableError
	require.True(t, errors.As(err, &du))
	assert.Equal(t, "deadline exceeded", du.Reason)
}

func TestRetry_DataUnavailablePassesThrough(t *testing.T) {
	calls := 0
	want := &DataUnavailableError{Source: "market data", Reason: "no provider configured"}
	_, err := Retry(context.Background(), fastRetry(), "market data", func(context.Context) (int, error) {
		calls++
		return 0, want
	})
	assert.Equal(t, 1, calls)
	assert.Same(t, want, err)
}
