package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	t.Run("burst up to capacity", func(t *testing.T) {
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		rl := newRateLimiter(10)
		rl.now = func() time.Time { return now }
		rl.last = now

		for i := 0; i < 10; i++ {
			_, ok := rl.reserve()
			require.True(t, ok, "request %d", i)
		}

		delay, ok := rl.reserve()
		assert.False(t, ok)
		assert.Equal(t, 6*time.Second, delay)

		now = now.Add(6 * time.Second)
		_, ok = rl.reserve()
		assert.True(t, ok)
	})

	t.Run("refill never exceeds capacity", func(t *testing.T) {
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		rl := newRateLimiter(2)
		rl.now = func() time.Time { return now }
		rl.last = now

		now = now.Add(time.Hour)
		for i := 0; i < 2; i++ {
			_, ok := rl.reserve()
			require.True(t, ok)
		}
		_, ok := rl.reserve()
		assert.False(t, ok)
	})

	t.Run("context cancellation", func(t *testing.T) {
		rl := newRateLimiter(1)
		require.NoError(t, rl.wait(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := rl.wait(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("default rate", func(t *testing.T) {
		rl := newRateLimiter(0)
		assert.Equal(t, float64(defaultRequestsPerMinute), rl.capacity)
	})
}
