package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Jitter:            false,
	}
}

func TestRetry_Success(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	}, DefaultRetryConfig(), nil)

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetry_FailureThenSuccess(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, fastConfig(3), nil)

	if err != nil {
		t.Errorf("Expected no error after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_MaxAttempts(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("persistent error")
	}, fastConfig(2), nil)

	if err == nil {
		t.Error("Expected error after max attempts")
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestRetry_NonRetryableError(t *testing.T) {
	attempts := 0
	isRetryable := func(err error) bool {
		return false
	}

	err := Retry(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("non-retryable error")
	}, fastConfig(3), isRetryable)

	if err == nil {
		t.Error("Expected error")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for non-retryable error, got %d", attempts)
	}
}

func TestRetry_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := &RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    time.Hour,
		MaxBackoff:        time.Hour,
		BackoffMultiplier: 1,
	}

	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- Retry(ctx, func(ctx context.Context) error {
			attempts++
			return errors.New("connection refused")
		}, config, IsRetryableNetworkError)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected last error to be returned")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Retry did not return after cancellation")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt before cancellation, got %d", attempts)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "op timed out" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsRetryableNetworkError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"deadline exceeded", errors.New("context deadline exceeded"), true},
		{"net timeout", fmt.Errorf("wrapped: %w", timeoutErr{}), true},
		{"unexpected eof", errors.New("unexpected EOF"), true},
		{"status 503", &HTTPStatusError{StatusCode: 503}, true},
		{"status 429", &HTTPStatusError{StatusCode: 429}, true},
		{"status 400", &HTTPStatusError{StatusCode: 400}, false},
		{"status 404 wrapped", fmt.Errorf("open: %w", &HTTPStatusError{StatusCode: 404}), false},
		{"marked retryable", NewRetryableError(errors.New("flaky")), true},
		{"cancelled", context.Canceled, false},
		{"other error", errors.New("other error"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsRetryableNetworkError(tt.err)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempt        int
		initialBackoff time.Duration
		maxBackoff     time.Duration
		multiplier     float64
		expected       time.Duration
	}{
		{0, 100 * time.Millisecond, 1 * time.Second, 2.0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond, 1 * time.Second, 2.0, 200 * time.Millisecond},
		{2, 100 * time.Millisecond, 1 * time.Second, 2.0, 400 * time.Millisecond},
		{5, 100 * time.Millisecond, 1 * time.Second, 2.0, 1 * time.Second}, // Capped at max
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			backoff := CalculateBackoff(tt.attempt, tt.initialBackoff, tt.maxBackoff, tt.multiplier)
			if backoff != tt.expected {
				t.Errorf("Expected backoff %v, got %v", tt.expected, backoff)
			}
		})
	}
}

func TestBackoffFor_JitterBounded(t *testing.T) {
	config := &RetryConfig{
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
	for i := 0; i < 50; i++ {
		d := backoffFor(0, config)
		if d < 100*time.Millisecond || d > 125*time.Millisecond {
			t.Fatalf("Backoff %v outside jitter window", d)
		}
	}
}

func TestNewRetryableError(t *testing.T) {
	originalErr := errors.New("original error")
	retryableErr := NewRetryableError(originalErr)

	if retryableErr.Error() != "original error" {
		t.Errorf("Expected error message 'original error', got %s", retryableErr.Error())
	}
	if !IsRetryable(retryableErr) {
		t.Error("Expected error to be retryable")
	}
	if IsRetryable(originalErr) {
		t.Error("Expected original error to not be retryable")
	}
	if NewRetryableError(nil) != nil {
		t.Error("Expected nil for nil input")
	}
}
