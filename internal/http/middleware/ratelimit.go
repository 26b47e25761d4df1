package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// rateLimited counts 429 responses by limiter name.
var rateLimited = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by a rate limiter.",
	},
	[]string{"limiter"},
)

func init() {
	prometheus.MustRegister(rateLimited)
}

const (
	defaultBucketIdle = 10 * time.Minute
	sweepEvery        = 5000
)

// keyFunc picks the bucket a request draws from.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys signed-in callers by user id and everyone else by client
// IP. The "user:" and "ip:" prefixes keep the two spaces apart.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if uid := userIDFromCtx(c); uid != "" {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter is a process-local token bucket per key. Limits are not shared
// between replicas. Safe for concurrent use.
//
// The router runs one general limiter over the API and a much tighter one,
// named "otp", in front of pickup and delivery confirmation so a courier
// cannot walk the six-digit code space.
type RateLimiter struct {
	name  string
	rps   rate.Limit
	burst int
	keyFn keyFunc

	mu      sync.Mutex
	buckets map[string]*bucket
	idle    time.Duration
	calls   uint64
	now     func() time.Time
}

// NewRateLimiter builds a limiter refilling rps tokens per second up to burst
// (at least 1). It reports as "api" until Named.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	return &RateLimiter{
		name:    "api",
		rps:     rate.Limit(rps),
		burst:   max(burst, 1),
		keyFn:   keyFn,
		buckets: make(map[string]*bucket),
		idle:    defaultBucketIdle,
		now:     time.Now,
	}
}

// Named sets the limiter label on http_rate_limited_total. Empty keeps the
// current name.
func (rl *RateLimiter) Named(name string) *RateLimiter {
	if name != "" {
		rl.name = name
	}
	return rl
}

// limiterFor returns the bucket for key, creating it on first use. Every
// sweepEvery calls it drops buckets idle for longer than rl.idle first.
func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.calls++; rl.calls >= sweepEvery {
		rl.calls = 0
		for k, b := range rl.buckets {
			if now.Sub(b.seen) >= rl.idle {
				delete(rl.buckets, k)
			}
		}
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[key] = b
	}
	b.seen = now
	return b.lim
}

// retryAfter is the whole number of seconds until one token refills, at
// least 1.
func (rl *RateLimiter) retryAfter() string {
	if rl.rps <= 0 || rl.rps == rate.Inf {
		return "1"
	}
	return strconv.Itoa(max(int(math.Ceil(1/float64(rl.rps))), 1))
}

// IsRateBypass reports whether the request was marked as an idempotent
// replay and so skips limiting.
func IsRateBypass(c *gin.Context) bool {
	b, _ := c.Value(ctxKeyRateBypass).(bool)
	return b
}

// Handler enforces the limit. Rejections get 429 with Retry-After and the
// usual error envelope (code too_many_requests).
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) || rl.limiterFor(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}

		rateLimited.WithLabelValues(rl.name).Inc()
		LoggerFrom(c).Warn().Str("limiter", rl.name).Str("route", routeOf(c)).Msg("rate limited")

		c.Header("Retry-After", rl.retryAfter())
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": requestIDOf(c),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
