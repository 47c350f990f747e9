package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// rateLimitPrefix namespaces limiter counters in Redis.
const rateLimitPrefix = "ratelimit:"

// RateLimiter counts requests per client IP in fixed windows stored in
// Redis, so every instance behind a load balancer shares the same counters.
type RateLimiter struct {
	rdb *redis.Client
}

// NewRateLimiter creates a limiter backed by rdb.
func NewRateLimiter(rdb *redis.Client) *RateLimiter {
	return &RateLimiter{rdb: rdb}
}

// Limit returns middleware that allows maxRequests per IP within window for
// the named bucket. Returns 429 when exceeded. If Redis is unreachable the
// request is let through and the failure is logged.
func (l *RateLimiter) Limit(name string, maxRequests int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := fmt.Sprintf("%s%s:%s", rateLimitPrefix, name, c.RealIP())

			var incr *redis.IntCmd
			_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				incr = pipe.Incr(ctx, key)
				// NX keeps the window fixed and heals a counter left without a TTL.
				pipe.ExpireNX(ctx, key, window)
				return nil
			})
			if err != nil {
				slog.Warn("rate limiter unavailable", slog.String("bucket", name), slog.Any("error", err))
				return next(c)
			}
			count := incr.Val()

			if count > int64(maxRequests) {
				retry := window
				if ttl, err := l.rdb.TTL(ctx, key).Result(); err == nil && ttl > 0 {
					retry = ttl
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(retry.Round(time.Second).Seconds())))
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error":   "Too Many Requests",
					"message": "Rate limit exceeded. Please try again later.",
				})
			}
			return next(c)
		}
	}
}
