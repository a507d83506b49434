package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	t.Run("should allow requests under limit", func(t *testing.T) {
		limiter := NewRateLimiter(5)

		for i := 0; i < 5; i++ {
			assert.True(t, limiter.Allow())
		}
		assert.Equal(t, 5, limiter.Count())
	})

	t.Run("should reject when rate limit exceeded", func(t *testing.T) {
		limiter := NewRateLimiter(3)

		for i := 0; i < 3; i++ {
			limiter.Allow()
		}

		assert.False(t, limiter.Allow())
		assert.Equal(t, 3, limiter.Count())
	})

	t.Run("should allow requests after window expires", func(t *testing.T) {
		now := time.Now()
		limiter := NewRateLimiter(2)
		limiter.now = func() time.Time { return now }

		assert.True(t, limiter.Allow())
		assert.True(t, limiter.Allow())
		assert.False(t, limiter.Allow())

		now = now.Add(61 * time.Second)
		assert.True(t, limiter.Allow())
		assert.Equal(t, 1, limiter.Count())
	})

	t.Run("should use default limit", func(t *testing.T) {
		limiter := NewRateLimiter(0)

		for i := 0; i < DefaultMessagesPerMinute; i++ {
			assert.True(t, limiter.Allow())
		}
		assert.False(t, limiter.Allow())
	})
}
