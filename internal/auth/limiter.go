package auth

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// idleTTL is how long an unused caller bucket survives before eviction.
const idleTTL = 10 * time.Minute

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// limiterPool is a token bucket per caller id.
type limiterPool struct {
	mu        sync.Mutex
	m         map[string]*limiterEntry
	rps       rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return &limiterPool{m: make(map[string]*limiterEntry), rps: rate.Limit(rps), burst: burst, now: time.Now}
}

func (p *limiterPool) Allow(key string) bool {
	p.mu.Lock()
	now := p.now()
	if now.Sub(p.lastSweep) > idleTTL {
		for k, e := range p.m {
			if now.Sub(e.lastSeen) > idleTTL {
				delete(p.m, k)
			}
		}
		p.lastSweep = now
	}
	e, ok := p.m[key]
	if !ok {
		e = &limiterEntry{l: rate.NewLimiter(p.rps, p.burst)}
		p.m[key] = e
	}
	e.lastSeen = now
	p.mu.Unlock()
	return e.l.AllowN(now, 1)
}

// RateLimit rejects callers exceeding rps with 429. It must run after Caller.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	pool := newLimiterPool(rps, burst)
	return func(c *gin.Context) {
		key := CallerID(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !pool.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
