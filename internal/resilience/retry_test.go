package resilience

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"
)

func flaky(msg string) error {
	return fmt.Errorf("%s: %w", msg, syscall.ECONNRESET)
}

func doErr(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := DoVal(ctx, cfg, func(context.Context) (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func fastConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoVal_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := doErr(context.Background(), DefaultRetryConfig(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoVal_SuccessAfterRetry(t *testing.T) {
	var calls int
	err := doErr(context.Background(), fastConfig(3), func() error {
		calls++
		if calls < 3 {
			return flaky("temporary")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoVal_ExhaustsRetries(t *testing.T) {
	var calls int
	err := doErr(context.Background(), fastConfig(3), func() error {
		calls++
		return flaky("always fails")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoVal_NonTransientError_NoRetry(t *testing.T) {
	var calls int
	err := doErr(context.Background(), fastConfig(3), func() error {
		calls++
		return errors.New("permanent error: bad request")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call (no retry for non-transient), got %d", calls)
	}
}

func TestDoVal_ContextCancelled_StopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	cfg := RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
	}

	err := doErr(ctx, cfg, func() error {
		calls++
		if calls == 2 {
			cancel()
		}
		return flaky("fail")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls before cancel stopped retries, got %d", calls)
	}
}

func TestDoVal_CustomShouldRetry(t *testing.T) {
	var calls int
	cfg := fastConfig(3)
	cfg.ShouldRetry = func(err error) bool { return err.Error() == "retry me" }

	err := doErr(context.Background(), cfg, func() error {
		calls++
		if calls == 1 {
			return errors.New("retry me")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestDoVal_OnRetryCallback(t *testing.T) {
	var attempts []int
	var delays []time.Duration
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		Multiplier:     2.0,
		OnRetry: func(attempt int, delay time.Duration, _ error) {
			attempts = append(attempts, attempt)
			delays = append(delays, delay)
		},
	}

	_ = doErr(context.Background(), cfg, func() error {
		return flaky("fail")
	})

	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("expected attempts [1, 2], got %v", attempts)
	}
	if delays[0] != time.Millisecond || delays[1] != 2*time.Millisecond {
		t.Errorf("expected delays [1ms, 2ms], got %v", delays)
	}
}

func TestDoVal_ReturnsValueAfterRetry(t *testing.T) {
	var calls int
	val, err := DoVal(context.Background(), fastConfig(3), func(_ context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", flaky("fail")
		}
		return "hello", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "hello" {
		t.Errorf("expected %q, got %q", "hello", val)
	}
}

func TestDoVal_ReturnsZeroOnFailure(t *testing.T) {
	val, err := DoVal(context.Background(), fastConfig(2), func(_ context.Context) (int, error) {
		return 42, flaky("fail")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if val != 0 {
		t.Errorf("expected zero value on failure, got %d", val)
	}
}

func TestWithMaxRetries(t *testing.T) {
	cfg := fastConfig(10).WithMaxRetries(2)
	if cfg.MaxAttempts != 3 {
		t.Fatalf("expected 3 attempts for 2 retries, got %d", cfg.MaxAttempts)
	}
	if got := fastConfig(10).WithMaxRetries(-1).MaxAttempts; got != 1 {
		t.Errorf("expected 1 attempt for negative retries, got %d", got)
	}

	var calls int
	_ = doErr(context.Background(), cfg, func() error {
		calls++
		return flaky("fail")
	})
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestBackoff_PowersOfTwoSeconds(t *testing.T) {
	cfg := applyDefaults(DefaultRetryConfig())
	expected := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, want := range expected {
		if got := Backoff(i, cfg); got != want {
			t.Errorf("attempt %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestBackoff_CapsAtMax(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     5 * time.Second,
		Multiplier:     10.0,
	})
	if delay := Backoff(5, cfg); delay != 5*time.Second {
		t.Errorf("expected delay capped at 5s, got %v", delay)
	}
}

func TestRetryLogger(t *testing.T) {
	logger := RetryLogger("perplexity", "research")
	logger(1, 2*time.Second, errors.New("test error"))
}
