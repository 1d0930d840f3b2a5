package rpc

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const visitorIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps a token bucket per client address. Idle buckets are swept
// lazily on access.
type rateLimiter struct {
	mu         sync.Mutex
	perSecond  rate.Limit
	burst      int
	trustProxy bool
	visitors   map[string]*visitor
	lastSweep  time.Time
	clockNow   func() time.Time
}

func newRateLimiter(perSecond float64, burst int, trustProxy bool) *rateLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimiter{
		perSecond:  rate.Limit(perSecond),
		burst:      burst,
		trustProxy: trustProxy,
		visitors:   make(map[string]*visitor),
		clockNow:   time.Now,
	}
}

func (l *rateLimiter) allow(r *http.Request) bool {
	id := clientID(r, l.trustProxy)
	now := l.clockNow()

	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastSweep) > visitorIdleTTL {
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) > visitorIdleTTL {
				delete(l.visitors, key)
			}
		}
		l.lastSweep = now
	}
	v, ok := l.visitors[id]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.perSecond, l.burst)}
		l.visitors[id] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func clientID(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if parsed := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); parsed != nil {
			return parsed.String()
		}
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if parsed := net.ParseIP(strings.TrimSpace(first)); parsed != nil {
				return parsed.String()
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
