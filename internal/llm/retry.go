package llm

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RetryPolicy retries rate-limited completion calls with exponential backoff.
// Other errors are returned on first occurrence.
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // wait after the first failure
	MaxDelay    time.Duration // upper bound for any single wait
	Multiplier  float64       // growth factor between waits

	// OnRetry is called before each wait with the 1-based attempt that failed.
	OnRetry func(err error, attempt int, delay time.Duration)

	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy waits 5s, 10s, 20s... capped at 60s, for 3 attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   5 * time.Second,
		MaxDelay:    60 * time.Second,
		Multiplier:  2.0,
	}
}

// Delay returns the wait that follows failed attempt n (0-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	mult := p.Multiplier
	if mult == 0 {
		mult = 2.0
	}
	delay := float64(p.BaseDelay) * math.Pow(mult, float64(attempt))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Retry runs fn under policy. After the last rate-limited attempt it returns
// an error wrapping ErrRateLimited without waiting again.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := policy.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !IsRateLimit(err) {
			return zero, err
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}

		delay := policy.Delay(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt+1, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("retry cancelled: %w", err)
		}
	}

	return zero, fmt.Errorf("rate limit exceeded after %d attempts: %w", attempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
