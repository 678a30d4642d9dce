package server

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// rateLimiter is a small fixed-window limiter keyed by client IP. It guards
// the public endpoints against bursts; per-user quotas are out of scope.
type rateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*rateBucket
}

type rateBucket struct {
	count   int
	resetAt time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*rateBucket),
	}
}

func (l *rateLimiter) Allow(key string) bool {
	if l == nil || key == "" {
		return true
	}

	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[key]
	if !ok || now.After(bucket.resetAt) {
		l.buckets[key] = &rateBucket{count: 1, resetAt: now.Add(l.window)}
		return true
	}
	if bucket.count >= l.limit {
		return false
	}
	bucket.count++
	return true
}

func (s *Server) rateLimit(limiter *rateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			AbortWithError(c, ErrTooManyReqs)
			return
		}
		c.Next()
	}
}
