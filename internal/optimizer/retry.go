package optimizer

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// ErrResourceUnsafe is returned when the resource gate keeps blocking
// attempts until the attempt budget is spent.
var ErrResourceUnsafe = fmt.Errorf("system resources unsafe for operation")

// ResourceGate is consulted before every attempt. An unsafe reading aborts
// the attempt without consuming a retry.
type ResourceGate func() bool

// RetryOptions configures WithRetry.
type RetryOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// ShouldRetry short-circuits retries for non-retryable errors.
	// Nil means every error is retryable.
	ShouldRetry func(error) bool

	// Gate aborts an attempt pre-flight when resources are unsafe.
	// Nil means always safe.
	Gate ResourceGate

	// Sleep and Rand are injectable for tests; nil uses real time and
	// the package-level rand source.
	Sleep func(time.Duration)
	Rand  func() float64
}

func (o *RetryOptions) withDefaults() RetryOptions {
	out := *o
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 3
	}
	if out.BaseDelay <= 0 {
		out.BaseDelay = time.Second
	}
	if out.Sleep == nil {
		out.Sleep = time.Sleep
	}
	if out.Rand == nil {
		out.Rand = rand.Float64
	}
	return out
}

// WithRetry runs op with exponential backoff and multiplicative jitter:
// delay = baseDelay * 2^(attempt-1) * random-in-[0.5, 1.5).
//
// Exhausting MaxAttempts returns the last error unchanged. Gate aborts are
// retried without consuming an attempt, but only up to MaxAttempts waits;
// past that the condition is treated as terminal.
func WithRetry[T any](ctx context.Context, op func(context.Context) (T, error), opts RetryOptions) (T, error) {
	o := opts.withDefaults()

	var zero T
	var lastErr error
	gateWaits := 0

	for attempt := 1; attempt <= o.MaxAttempts; {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		if o.Gate != nil && !o.Gate() {
			gateWaits++
			if gateWaits >= o.MaxAttempts {
				return zero, ErrResourceUnsafe
			}
			o.Sleep(backoffDelay(o.BaseDelay, attempt, o.Rand))
			continue
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if o.ShouldRetry != nil && !o.ShouldRetry(err) {
			return zero, err
		}

		if attempt < o.MaxAttempts {
			o.Sleep(backoffDelay(o.BaseDelay, attempt, o.Rand))
		}
		attempt++
	}

	return zero, lastErr
}

func backoffDelay(base time.Duration, attempt int, randFn func() float64) time.Duration {
	delay := float64(base)
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	jitter := 0.5 + randFn() // [0.5, 1.5)
	return time.Duration(delay * jitter)
}
