package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errFlaky = errors.New("flaky")

func TestRetrySucceedsAfterFailures(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: Discard()}

	calls := 0
	err := r.Do(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
}

func TestRetryWrapsLastError(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, Logger: Discard()}

	err := r.Do(context.Background(), "op", func() error { return errFlaky })
	if !errors.Is(err, errFlaky) {
		t.Errorf("expected wrapped errFlaky, got %v", err)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	r := &RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		Retryable:   func(err error) bool { return !errors.Is(err, errFlaky) },
	}

	calls := 0
	_ = r.Do(context.Background(), "op", func() error {
		calls++
		return errFlaky
	})
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestRetryStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour}

	calls := 0
	err := r.Do(ctx, "op", func() error {
		calls++
		cancel()
		return errFlaky
	})
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
	if !errors.Is(err, errFlaky) {
		t.Errorf("expected errFlaky, got %v", err)
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name    string
		r       RetryConfig
		attempt int
		want    time.Duration
	}{
		{"first", RetryConfig{BaseDelay: time.Second}, 1, time.Second},
		{"doubles", RetryConfig{BaseDelay: time.Second}, 4, 8 * time.Second},
		{"capped", RetryConfig{BaseDelay: time.Second, MaxDelay: 5 * time.Second}, 4, 5 * time.Second},
		{"fixed", RetryConfig{BaseDelay: 2 * time.Second, MaxDelay: 2 * time.Second}, 9, 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.delay(tt.attempt); got != tt.want {
				t.Errorf("delay(%d) = %v; want %v", tt.attempt, got, tt.want)
			}
		})
	}
}
