package mw

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// limiterIdle is how long a client's limiter survives without requests.
const limiterIdle = 10 * time.Minute

// ClientLimiters hands out one token bucket per client address. Buckets of idle
// clients expire so the table does not grow with every address ever seen.
type ClientLimiters struct {
	buckets *cache.Cache
	r       rate.Limit
	b       int
}

// NewClientLimiters creates buckets refilling at r with burst b.
func NewClientLimiters(r rate.Limit, b int) *ClientLimiters {
	return &ClientLimiters{
		buckets: cache.New(limiterIdle, limiterIdle),
		r:       r,
		b:       b,
	}
}

// Get returns the bucket of client, creating it on first use.
func (l *ClientLimiters) Get(client string) *rate.Limiter {
	if v, ok := l.buckets.Get(client); ok {
		lim := v.(*rate.Limiter)
		l.buckets.Set(client, lim, cache.DefaultExpiration)
		return lim
	}
	lim := rate.NewLimiter(l.r, l.b)
	if err := l.buckets.Add(client, lim, cache.DefaultExpiration); err != nil {
		// Another request created it first.
		if v, ok := l.buckets.Get(client); ok {
			return v.(*rate.Limiter)
		}
	}
	return lim
}

// RateLimiter rejects clients that exceed r requests per second with burst b.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiters := NewClientLimiters(r, b)
	return func(c *gin.Context) {
		lim := limiters.Get(c.ClientIP())
		res := lim.Reserve()
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			if delay != rate.InfDuration {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
