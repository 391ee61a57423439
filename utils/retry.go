package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// MaxDelay caps the back-off; zero leaves it uncapped. Setting it equal
	// to BaseDelay gives a fixed interval.
	MaxDelay time.Duration
	Logger   *Logger

	// Retryable reports whether an error is worth another attempt.
	// Nil means every error is retried.
	Retryable func(error) bool
}

// Do executes fn with exponential back-off retry logic. It gives up early when
// ctx is done or when Retryable rejects the error.
func (r *RetryConfig) Do(ctx context.Context, operationName string, fn func() error) error {
	attempts := max(r.MaxAttempts, 1)
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || (r.Retryable != nil && !r.Retryable(lastErr)) {
			return lastErr
		}

		if attempt < attempts {
			delay := r.delay(attempt)
			if r.Logger != nil {
				r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v; retrying in %v",
					operationName, attempt, attempts, lastErr, delay)
			}
			if err := sleepCtx(ctx, delay); err != nil {
				return errors.Join(lastErr, err)
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, attempts, lastErr)
}

// delay returns the wait after the given failed attempt: BaseDelay doubled
// per earlier attempt, capped at MaxDelay.
func (r *RetryConfig) delay(attempt int) time.Duration {
	d := r.BaseDelay
	for i := 1; i < attempt; i++ {
		if r.MaxDelay > 0 && d >= r.MaxDelay {
			break
		}
		d *= 2
	}
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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
