// Package middleware holds gin middleware specific to the analytics API.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// idleTTL is how long an IP's bucket is kept after its last request.
const idleTTL = 10 * time.Minute

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter allows each client IP perMinute requests per minute with
// bursts of up to burst. Idle buckets are evicted until done is closed.
func RateLimiter(perMinute, burst int, done <-chan struct{}) gin.HandlerFunc {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(float64(perMinute) / time.Minute.Seconds())

	var mu sync.Mutex
	limiters := make(map[string]*ipLimiter)

	go func() {
		ticker := time.NewTicker(idleTTL)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				mu.Lock()
				for ip, entry := range limiters {
					if now.Sub(entry.lastSeen) > idleTTL {
						delete(limiters, ip)
					}
				}
				mu.Unlock()
			}
		}
	}()

	return func(c *gin.Context) {
		ip := c.ClientIP()

		mu.Lock()
		entry, exists := limiters[ip]
		if !exists {
			entry = &ipLimiter{limiter: rate.NewLimiter(limit, burst)}
			limiters[ip] = entry
		}
		entry.lastSeen = time.Now()
		allowed := entry.limiter.Allow()
		mu.Unlock()

		if !allowed {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
