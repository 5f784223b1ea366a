//go:build unit

package remote_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"order-service/internal/infra/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy(t *testing.T) {
	noSleep := func(_ context.Context, _ time.Duration) error { return nil }

	t.Run("returns immediately on success", func(t *testing.T) {
		policy := remote.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Sleep: noSleep}

		calls := 0
		err := policy.Do(context.Background(), func() error {
			calls++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("rejections are never retried", func(t *testing.T) {
		policy := remote.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Sleep: noSleep}

		calls := 0
		err := policy.Do(context.Background(), func() error {
			calls++
			return remote.Rejected("insufficient stock")
		})

		require.True(t, remote.IsRejected(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("retries transport failures up to max attempts", func(t *testing.T) {
		policy := remote.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Sleep: noSleep}

		calls := 0
		err := policy.Do(context.Background(), func() error {
			calls++
			return remote.Unreachable(errors.New("dial tcp: refused"), "request failed")
		})

		require.True(t, remote.IsUnreachable(err))
		assert.Equal(t, 3, calls)
	})

	t.Run("recovers when a later attempt succeeds", func(t *testing.T) {
		policy := remote.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Sleep: noSleep}

		calls := 0
		err := policy.Do(context.Background(), func() error {
			calls++
			if calls < 3 {
				return remote.Unreachable(errors.New("timeout"), "request failed")
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("backoff doubles and is capped", func(t *testing.T) {
		var delays []time.Duration
		policy := remote.RetryPolicy{
			MaxAttempts: 5,
			BaseDelay:   time.Second,
			MaxDelay:    3 * time.Second,
			Sleep: func(_ context.Context, d time.Duration) error {
				delays = append(delays, d)
				return nil
			},
		}

		_ = policy.Do(context.Background(), func() error {
			return remote.Unreachable(errors.New("timeout"), "request failed")
		})

		require.Equal(t, []time.Duration{
			time.Second,
			2 * time.Second,
			3 * time.Second,
			3 * time.Second,
		}, delays)
	})

	t.Run("canceled context aborts the wait", func(t *testing.T) {
		policy := remote.RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			Sleep: func(ctx context.Context, _ time.Duration) error {
				return context.Canceled
			},
		}

		calls := 0
		err := policy.Do(context.Background(), func() error {
			calls++
			return remote.Unreachable(errors.New("timeout"), "request failed")
		})

		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
