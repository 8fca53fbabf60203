package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	appErrors "github.com/profepulse/profepulse-api/pkg/errors"
	"github.com/profepulse/profepulse-api/pkg/response"
)

// ErrTooManyRequests is returned when a caller exceeds its write budget.
var ErrTooManyRequests = appErrors.New("RATE_LIMITED", http.StatusTooManyRequests, "too many requests, slow down")

// RateLimit throttles each caller (user id when authenticated, client IP otherwise)
// with a token bucket of rps tokens per second and the given burst.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}
	var mu sync.Mutex
	type entry struct {
		limiter *rate.Limiter
		seen    time.Time
	}
	limiters := make(map[string]*entry)
	lastSweep := time.Now()

	return func(c *gin.Context) {
		key := c.ClientIP()
		if claims := CurrentClaims(c); claims != nil {
			key = "user:" + claims.UserID
		}

		now := time.Now()
		mu.Lock()
		if now.Sub(lastSweep) > 10*time.Minute {
			for k, e := range limiters {
				if now.Sub(e.seen) > 10*time.Minute {
					delete(limiters, k)
				}
			}
			lastSweep = now
		}
		e, ok := limiters[key]
		if !ok {
			e = &entry{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			limiters[key] = e
		}
		e.seen = now
		allowed := e.limiter.Allow()
		mu.Unlock()

		if !allowed {
			response.Error(c, ErrTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
