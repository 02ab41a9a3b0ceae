package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RateLimiter counts one hit for key and reports whether it is still within
// the limit.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, err error)
}

// fixedWindowScript increments the window counter and sets its expiry on the
// first hit.
const fixedWindowScript = `
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return current
`

// RedisRateLimiter is a fixed-window limiter shared by every API instance.
type RedisRateLimiter struct {
	client redis.Scripter
	prefix string
	limit  int
	window time.Duration
}

func NewRedisRateLimiter(client redis.Scripter, prefix string, limit int, window time.Duration) *RedisRateLimiter {
	if window < time.Second {
		window = time.Second
	}
	return &RedisRateLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

func (r *RedisRateLimiter) windowKey(key string, now time.Time) string {
	window := now.Unix() / int64(r.window.Seconds())
	return fmt.Sprintf("ratelimit:%s:%s:%d", r.prefix, key, window)
}

func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	ttl := int(r.window.Seconds()) + 1
	count, err := r.client.Eval(ctx, fixedWindowScript, []string{r.windowKey(key, time.Now())}, ttl).Int()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit eval: %w", err)
	}
	remaining := r.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= r.limit, remaining, nil
}

// RateLimitByIP rejects callers over the limit with 429. A limiter failure
// lets the request through.
func RateLimitByIP(limiter RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, remaining, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, try again later"})
			return
		}
		c.Next()
	}
}
