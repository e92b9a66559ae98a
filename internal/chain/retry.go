package chain

import (
	"context"
	"time"
)

// Backoff selects how the delay grows between attempts.
type Backoff int

const (
	// Linear waits attempt*BaseDelay.
	Linear Backoff = iota
	// Exponential waits BaseDelay*2^(attempt-1).
	Exponential
)

// RetryPolicy bounds a retry loop. MaxAttempts counts the first call.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Backoff     Backoff
	// RetryIf decides whether an error is retryable; nil retries every error.
	RetryIf func(error) bool
	// OnRetry is called before sleeping.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Delay returns the wait before the given retry (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if attempt < 1 {
		attempt = 1
	}
	if p.Backoff == Exponential {
		return base << uint(attempt-1)
	}
	return base * time.Duration(attempt)
}

// WithRetry calls fn until it succeeds, the error is not retryable, the attempt
// cap is reached, or ctx is done. The last error is returned.
func WithRetry(ctx context.Context, policy RetryPolicy, fn func(context.Context) error) error {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxAttempts {
			return err
		}
		if policy.RetryIf != nil && !policy.RetryIf(err) {
			return err
		}

		delay := policy.Delay(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
