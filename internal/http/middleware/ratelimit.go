// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the per-caller token-bucket limiter guarding the
// ledger API. Buckets are keyed by the authenticated user (or client IP for
// the public auth routes), live in process memory, and are evicted when idle.
// Replays served from the idempotency store and exempt routes (health,
// metrics, the live event stream) never consume tokens.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys by "user:<id>" when Authenticate resolved a user and by
// "ip:<addr>" otherwise.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get(CtxKeyUserID); ok {
			if s, ok := v.(string); ok && s != "" {
				return "user:" + s
			}
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const (
	defaultIdleTTL = 10 * time.Minute
	// buckets are swept once every gcEvery lookups
	gcEvery = 5000
)

// RateLimiter is a per-key token-bucket limiter. Safe for concurrent use.
type RateLimiter struct {
	rps    rate.Limit
	burst  int
	keyFn  keyFunc
	exempt []string

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter builds a limiter refilling rps tokens per second up to
// burst (coerced to at least 1), keyed by keyFn.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      defaultIdleTTL,
	}
}

// Exempt skips limiting for requests whose path equals one of paths or sits
// below it. It returns rl for chaining.
func (rl *RateLimiter) Exempt(paths ...string) *RateLimiter {
	for _, p := range paths {
		if p = strings.TrimRight(strings.TrimSpace(p), "/"); p != "" {
			rl.exempt = append(rl.exempt, p)
		}
	}
	return rl
}

func (rl *RateLimiter) isExempt(path string) bool {
	for _, p := range rl.exempt {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Len reports how many buckets are currently held.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// getVisitor returns the limiter for key, creating it if absent. The sweep
// runs before the lookup so a stale bucket for key itself is also dropped.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanupN++
	if rl.cleanupN >= gcEvery {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator marked this request as a
// replay of a stored result.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// retryAfter is the whole number of seconds until lim has a token again,
// at least 1.
func retryAfter(lim *rate.Limiter) int {
	if lim.Limit() <= 0 {
		return 60
	}
	r := lim.Reserve()
	d := r.Delay()
	r.Cancel()
	return max(1, int(math.Ceil(d.Seconds())))
}

// Handler enforces the limits. Denied requests get 429 with a Retry-After
// header and the standard error envelope (code "too_many_requests").
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) || rl.isExempt(c.Request.URL.Path) {
			c.Next()
			return
		}

		lim := rl.getVisitor(rl.keyFn(c))
		if lim.Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(retryAfter(lim)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
