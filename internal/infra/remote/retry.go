package remote

import (
	"context"
	"time"
)

// RetryPolicy retries transient transport failures with doubling backoff.
// Rejections from a reachable service are returned immediately.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Sleep is swappable in tests; nil means wait on a real timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewRetryPolicy(maxAttempts int, baseDelay time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    10 * time.Second,
	}
}

func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	delay := p.BaseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !IsUnreachable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return err
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
