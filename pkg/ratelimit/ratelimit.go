package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"realtime-collab/pkg/metrics"
)

// Limiter is a token bucket per client IP
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	every   rate.Limit    // refill rate
	burst   int           // bucket size
	idle    time.Duration // forget clients quiet for this long
	now     func() time.Time
}

type client struct {
	lim  *rate.Limiter
	seen time.Time
}

// New creates a limiter allowing max requests per window, per IP
func New(max int, per time.Duration) *Limiter {
	return &Limiter{
		clients: map[string]*client{},
		every:   rate.Every(per / time.Duration(max)),
		burst:   max,
		idle:    per * 3,
		now:     time.Now,
	}
}

// Allow reports whether key may proceed now
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c := l.clients[key]
	if c == nil {
		l.sweep(now)
		c = &client{lim: rate.NewLimiter(l.every, l.burst)}
		l.clients[key] = c
	}
	c.seen = now
	return c.lim.AllowN(now, 1)
}

// sweep drops idle clients; caller holds mu
func (l *Limiter) sweep(now time.Time) {
	for k, c := range l.clients {
		if now.Sub(c.seen) > l.idle {
			delete(l.clients, k)
		}
	}
}

// Middleware enforces the rate limit before calling the next handler
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ip, _, err := net.SplitHostPort(req.RemoteAddr)
		if err != nil {
			ip = req.RemoteAddr
		}
		if !l.Allow(ip) {
			metrics.RateLimited.Inc()
			http.Error(w, "rate limit", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, req)
	})
}
