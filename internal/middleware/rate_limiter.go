// Package middleware holds HTTP middleware backed by external services.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/devtrack-app/devtrack/internal/pkg/logger"
	"github.com/devtrack-app/devtrack/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitFailureMode controls behavior when redis is unreachable.
type RateLimitFailureMode int

const (
	// RateLimitFailOpen lets requests through on limiter errors.
	RateLimitFailOpen RateLimitFailureMode = iota
	// RateLimitFailClose rejects requests on limiter errors.
	RateLimitFailClose
)

// RateLimitOptions tunes one limit rule.
type RateLimitOptions struct {
	FailureMode RateLimitFailureMode
}

// RateLimiter is a fixed-window per-IP limiter on redis.
type RateLimiter struct {
	rdb *redis.Client
}

// NewRateLimiter creates a limiter over the given redis client.
func NewRateLimiter(rdb *redis.Client) *RateLimiter {
	return &RateLimiter{rdb: rdb}
}

// rateLimitScript atomically increments the window counter and sets its TTL
// on first hit. Returns {count, first_in_window}.
var rateLimitScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
local first = 0
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	first = 1
end
return {count, first}
`)

// rateLimitRun is swappable in tests.
var rateLimitRun = func(ctx context.Context, client *redis.Client, key string, windowMillis int64) (int64, bool, error) {
	res, err := rateLimitScript.Run(ctx, client, []string{key}, windowMillis).Slice()
	if err != nil {
		return 0, false, err
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("rate limit script returned %d values", len(res))
	}
	count, _ := res[0].(int64)
	first, _ := res[1].(int64)
	return count, first == 1, nil
}

func windowTTLMillis(window time.Duration) int64 {
	millis := window.Milliseconds()
	if millis < 1 {
		return 1
	}
	return millis
}

// Limit applies a fail-open per-IP limit of max requests per window under
// the given rule name.
func (l *RateLimiter) Limit(name string, max int, window time.Duration) gin.HandlerFunc {
	return l.LimitWithOptions(name, max, window, RateLimitOptions{})
}

// LimitWithOptions is Limit with an explicit failure mode.
func (l *RateLimiter) LimitWithOptions(name string, max int, window time.Duration, opts RateLimitOptions) gin.HandlerFunc {
	ttl := windowTTLMillis(window)
	return func(c *gin.Context) {
		key := fmt.Sprintf("ratelimit:%s:%s", name, c.ClientIP())

		count, _, err := rateLimitRun(c.Request.Context(), l.rdb, key, ttl)
		if err != nil {
			logger.L().Warn("rate limiter unavailable",
				zap.String("rule", name),
				zap.Error(err))
			if opts.FailureMode == RateLimitFailClose {
				response.Error(c, http.StatusTooManyRequests, "rate limit exceeded")
				c.Abort()
				return
			}
			c.Next()
			return
		}

		if count > int64(max) {
			response.Error(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}
