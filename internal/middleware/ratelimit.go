package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per key (client IP).
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
}

// NewIPRateLimiter allows limit requests per window for each key.
func NewIPRateLimiter(limit int, window time.Duration) *IPRateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(window / time.Duration(limit)),
		burst:    limit,
		idle:     3 * window,
	}
}

func (r *IPRateLimiter) Allow(key string) bool {
	r.mu.Lock()
	v, ok := r.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.visitors[key] = v
	}
	v.lastSeen = time.Now()
	r.mu.Unlock()
	return v.limiter.Allow()
}

// Cleanup drops idle visitors once a minute until stop is closed.
func (r *IPRateLimiter) Cleanup(stop <-chan struct{}) {
	tick := time.NewTicker(time.Minute)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tick.C:
			r.evict(time.Now())
		}
	}
}

func (r *IPRateLimiter) evict(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range r.visitors {
		if now.Sub(v.lastSeen) > r.idle {
			delete(r.visitors, k)
		}
	}
}

// RateLimit returns a middleware that limits by client IP.
func RateLimit(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
