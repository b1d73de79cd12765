package services

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// RateLimiter throttles sensitive endpoints (login, register) with a fixed
// Redis window per client IP. Fails open: if Redis is down, requests pass.
type RateLimiter struct {
	Redis  *redis.Client
	Limit  int
	Window time.Duration
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(rdb *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{Redis: rdb, Limit: limit, Window: window}
}

// Middleware returns a gin middleware enforcing the limit for one endpoint
// name. The name keeps login and register counters separate.
func (rl *RateLimiter) Middleware(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil || rl.Redis == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:%s:%s", name, c.ClientIP())
		ctx := c.Request.Context()

		count, err := rl.Redis.Incr(ctx, key).Result()
		if err != nil {
			log.Printf("Rate limiter unavailable, allowing request: %v", err)
			c.Next()
			return
		}
		if count == 1 {
			rl.Redis.Expire(ctx, key, rl.Window)
		}
		if count > int64(rl.Limit) {
			ttl, _ := rl.Redis.TTL(ctx, key).Result()
			c.Header("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests, slow down",
			})
			return
		}
		c.Next()
	}
}
