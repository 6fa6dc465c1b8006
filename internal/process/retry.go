package process

import (
	"context"
	"time"
)

// RetryConfig controls bounded retries with linear backoff: the wait before
// attempt n+1 is n*Delay.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
	// ShouldRetry reports whether err is worth another attempt. Nil
	// retries every error.
	ShouldRetry func(err error) bool
	OnRetry     func(attempt int, err error)
}

// Retry runs fn until it succeeds, the attempts are used up, or ctx ends.
// It returns the last error.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil || attempt == attempts {
			return err
		}
		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(err) {
			return err
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}
		if sleepErr := sleep(ctx, time.Duration(attempt)*cfg.Delay); sleepErr != nil {
			return err
		}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
