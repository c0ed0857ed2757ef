package optimizer

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetryExhaustsAttempts(t *testing.T) {
	opFailure := errors.New("network down")
	var delays []time.Duration
	attempts := 0

	_, err := WithRetry(context.Background(), func(ctx context.Context) (int, error) {
		attempts++
		return 0, opFailure
	}, RetryOptions{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Sleep:       func(d time.Duration) { delays = append(delays, d) },
		Rand:        func() float64 { return 0.5 }, // jitter factor exactly 1.0
	})

	if attempts != 3 {
		t.Errorf("attempts = %v, want exactly 3", attempts)
	}
	if !errors.Is(err, opFailure) {
		t.Errorf("error = %v, want the original operation error", err)
	}

	// Two sleeps between three attempts, doubling each time.
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delays[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestWithRetrySucceedsMidway(t *testing.T) {
	attempts := 0

	result, err := WithRetry(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("transient")
		}
		return "ok", nil
	}, RetryOptions{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		Sleep:       func(time.Duration) {},
	})
	if err != nil {
		t.Fatalf("WithRetry() error = %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %v, want ok", result)
	}
	if attempts != 2 {
		t.Errorf("attempts = %v, want 2", attempts)
	}
}

func TestWithRetryJitterBounds(t *testing.T) {
	tests := []struct {
		name     string
		rand     float64
		expected time.Duration
	}{
		{name: "low jitter", rand: 0.0, expected: 500 * time.Millisecond},
		{name: "high jitter", rand: 0.999, expected: 1499 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var delays []time.Duration
			_, _ = WithRetry(context.Background(), func(ctx context.Context) (int, error) {
				return 0, errors.New("always fails")
			}, RetryOptions{
				MaxAttempts: 2,
				BaseDelay:   time.Second,
				Sleep:       func(d time.Duration) { delays = append(delays, d) },
				Rand:        func() float64 { return tt.rand },
			})

			if len(delays) != 1 {
				t.Fatalf("delays = %v, want a single sleep", delays)
			}
			if delays[0] != tt.expected {
				t.Errorf("delay = %v, want %v", delays[0], tt.expected)
			}
		})
	}
}

func TestWithRetryNonRetryableShortCircuits(t *testing.T) {
	fatal := errors.New("permission denied")
	attempts := 0

	_, err := WithRetry(context.Background(), func(ctx context.Context) (int, error) {
		attempts++
		return 0, fatal
	}, RetryOptions{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		ShouldRetry: func(err error) bool { return !errors.Is(err, fatal) },
		Sleep:       func(time.Duration) {},
	})

	if attempts != 1 {
		t.Errorf("attempts = %v, non-retryable error should stop after 1", attempts)
	}
	if !errors.Is(err, fatal) {
		t.Errorf("error = %v, want the fatal error", err)
	}
}

func TestWithRetryGateBlocksWithoutConsumingAttempts(t *testing.T) {
	gateReadings := []bool{false, false, true}
	gateCalls := 0
	attempts := 0

	result, err := WithRetry(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		return "done", nil
	}, RetryOptions{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		Gate: func() bool {
			reading := gateReadings[gateCalls]
			gateCalls++
			return reading
		},
		Sleep: func(time.Duration) {},
	})
	if err != nil {
		t.Fatalf("WithRetry() error = %v", err)
	}
	if result != "done" {
		t.Errorf("result = %v, want done", result)
	}
	if attempts != 1 {
		t.Errorf("attempts = %v, gate waits must not consume attempts", attempts)
	}
}

func TestWithRetryGateExhaustion(t *testing.T) {
	attempts := 0

	_, err := WithRetry(context.Background(), func(ctx context.Context) (int, error) {
		attempts++
		return 0, nil
	}, RetryOptions{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Gate:        func() bool { return false },
		Sleep:       func(time.Duration) {},
	})

	if !errors.Is(err, ErrResourceUnsafe) {
		t.Errorf("error = %v, want ErrResourceUnsafe", err)
	}
	if attempts != 0 {
		t.Errorf("attempts = %v, operation must never run while gated", attempts)
	}
}

func TestWithRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	_, err := WithRetry(ctx, func(ctx context.Context) (int, error) {
		attempts++
		return 0, nil
	}, RetryOptions{MaxAttempts: 3, BaseDelay: time.Second, Sleep: func(time.Duration) {}})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if attempts != 0 {
		t.Errorf("attempts = %v, want 0 after cancellation", attempts)
	}
}
