package process

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	var retried []int
	err := Retry(context.Background(), RetryConfig{
		Attempts: 3,
		Delay:    time.Millisecond,
		OnRetry:  func(attempt int, err error) { retried = append(retried, attempt) },
	}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetry_ReturnsLastError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryConfig{Attempts: 2}, func(ctx context.Context) error {
		calls++
		return errors.New("always")
	})
	assert.EqualError(t, err, "always")
	assert.Equal(t, 2, calls)
}

func TestRetry_LinearBackoff(t *testing.T) {
	start := time.Now()
	_ = Retry(context.Background(), RetryConfig{Attempts: 3, Delay: 20 * time.Millisecond}, func(ctx context.Context) error {
		return errors.New("x")
	})
	// 1*20ms + 2*20ms
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	err := Retry(context.Background(), RetryConfig{
		Attempts:    5,
		ShouldRetry: func(err error) bool { return !errors.Is(err, permanent) },
	}, func(ctx context.Context) error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, RetryConfig{Attempts: 5, Delay: time.Hour}, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("x")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
