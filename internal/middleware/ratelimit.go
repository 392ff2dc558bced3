package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mmuslimabdulj/goat-dm/internal/config"
)

// visitor is one IP's token bucket
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter manages rate limiting per IP address
type IPRateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	idle     time.Duration
}

// NewIPRateLimiter creates a new IP-based rate limiter.
// r: requests per second, b: burst size. Idle entries are evicted until ctx
// is cancelled.
func NewIPRateLimiter(ctx context.Context, r rate.Limit, b int) *IPRateLimiter {
	if b < 1 {
		b = 1
	}
	limiter := &IPRateLimiter{
		visitors: make(map[string]*visitor),
		rate:     r,
		burst:    b,
		idle:     5 * time.Minute,
	}

	go limiter.cleanupLoop(ctx)

	return limiter
}

// GetLimiter returns the rate limiter for the given IP
func (l *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()

	return v.limiter
}

// Allow checks if the request from the given IP is allowed
func (l *IPRateLimiter) Allow(ip string) bool {
	return l.GetLimiter(ip).Allow()
}

// Len returns the number of tracked IPs
func (l *IPRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

func (l *IPRateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(l.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

// evict drops visitors not seen since now minus the idle window
func (l *IPRateLimiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idle {
			delete(l.visitors, ip)
		}
	}
}

// getIP extracts the client IP from the request. Proxy headers are resolved
// into RemoteAddr by chi's RealIP middleware upstream.
func getIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware creates a middleware that rate limits requests
func RateLimitMiddleware(limiter *IPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RateLimitFunc(limiter, next.ServeHTTP)
	}
}

// RateLimitFunc wraps a HandlerFunc with rate limiting
func RateLimitFunc(limiter *IPRateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow(getIP(r)) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// Limiters groups the limiters applied to the different route classes
type Limiters struct {
	// API covers JSON endpoints and page loads
	API *IPRateLimiter
	// WebSocket covers connection upgrades
	WebSocket *IPRateLimiter
	// Strict covers login and registration
	Strict *IPRateLimiter
}

// NewLimiters builds the limiters from cfg. Bursts are twice the rate.
func NewLimiters(ctx context.Context, cfg *config.Config) *Limiters {
	return &Limiters{
		API:       NewIPRateLimiter(ctx, cfg.RateLimitAPI, int(cfg.RateLimitAPI*2)),
		WebSocket: NewIPRateLimiter(ctx, cfg.RateLimitWS, int(cfg.RateLimitWS*2)),
		Strict:    NewIPRateLimiter(ctx, cfg.RateLimitStrict, int(cfg.RateLimitStrict*2)),
	}
}
