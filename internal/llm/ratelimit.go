package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const defaultRequestsPerMinute = 50

// rateLimiter is a token bucket refilled continuously at requestsPerMinute.
type rateLimiter struct {
	last     time.Time
	now      func() time.Time
	interval time.Duration
	tokens   float64
	capacity float64
	mu       sync.Mutex
}

func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = defaultRequestsPerMinute
	}
	rl := &rateLimiter{
		now:      time.Now,
		interval: time.Minute / time.Duration(requestsPerMinute),
		tokens:   float64(requestsPerMinute),
		capacity: float64(requestsPerMinute),
	}
	rl.last = rl.now()
	return rl
}

// wait blocks until a token is available or the context is canceled.
func (rl *rateLimiter) wait(ctx context.Context) error {
	for {
		delay, ok := rl.reserve()
		if ok {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limiter canceled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// reserve takes a token if one is available, otherwise it reports how long
// until the next one.
func (rl *rateLimiter) reserve() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if elapsed := now.Sub(rl.last); elapsed > 0 {
		rl.tokens += float64(elapsed) / float64(rl.interval)
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
		rl.last = now
	}

	if rl.tokens >= 1 {
		rl.tokens--
		return 0, true
	}
	missing := 1 - rl.tokens
	return time.Duration(missing * float64(rl.interval)), false
}
