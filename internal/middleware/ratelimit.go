package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/visitorpass/desk/pkg/response"
)

// RateLimiter hands out one token bucket per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rps      rate.Limit
	burst    int
	idle     time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second with the given burst per IP.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
		idle:     10 * time.Minute,
	}
}

// Allow reports whether a request from key may proceed now.
func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()
	rl.mu.Lock()
	e, ok := rl.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = now
	rl.mu.Unlock()
	return e.limiter.AllowN(now, 1)
}

// Cleanup drops limiters not used since before now minus the idle window.
func (rl *RateLimiter) Cleanup(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for k, e := range rl.limiters {
		if now.Sub(e.lastSeen) > rl.idle {
			delete(rl.limiters, k)
			n++
		}
	}
	return n
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// RateLimit returns a middleware rejecting clients over their request rate with 429.
func RateLimit(rl *RateLimiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.Allow(ip) {
			retry := 1
			if rl.rps > 0 {
				if s := int(1 / float64(rl.rps)); s > 1 {
					retry = s
				}
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			logger.Warn("rate limit exceeded", zap.String("client_ip", ip), zap.String("path", c.Request.URL.Path))
			response.TooManyRequests(c, "too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
