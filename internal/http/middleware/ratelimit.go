package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"
)

// PageOpenLimiter throttles page opens with token buckets kept per browsing
// session and per client address. An open spends one token from each.
type PageOpenLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   int
	now     func() time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// NewPageOpenLimiter allows rate opens per second with the given burst.
func NewPageOpenLimiter(rate float64, burst int) *PageOpenLimiter {
	if burst < 1 {
		burst = 1
	}
	return &PageOpenLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		now:     time.Now,
	}
}

// Allow spends one token from every key's bucket, or none when any of them
// is empty.
func (l *PageOpenLimiter) Allow(keys ...string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	buckets := make([]*bucket, 0, len(keys))
	for _, key := range keys {
		b := l.refill(key, now)
		if b.tokens < 1 {
			return false
		}
		buckets = append(buckets, b)
	}
	for _, b := range buckets {
		b.tokens--
	}
	return true
}

func (l *PageOpenLimiter) refill(key string, now time.Time) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), seen: now}
		l.buckets[key] = b
	}
	b.tokens += now.Sub(b.seen).Seconds() * l.rate
	if b.tokens > float64(l.burst) {
		b.tokens = float64(l.burst)
	}
	b.seen = now
	return b
}

// Evict drops buckets untouched since before cutoff and returns how many.
func (l *PageOpenLimiter) Evict(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for key, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, key)
			n++
		}
	}
	return n
}

// Run evicts idle buckets every interval until ctx ends.
func (l *PageOpenLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Evict(l.now().Add(-2 * interval))
		}
	}
}

// Middleware rejects requests over the limit with 429 Too Many Requests.
// It must run after Session. A client that drops its cookie gets a new
// session on every request, so the address bucket still applies.
func (l *PageOpenLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys := []string{"addr:" + clientAddr(r)}
		if session, ok := SessionKeyFromContext(r.Context()); ok {
			keys = append(keys, "session:"+session)
		}
		if !l.Allow(keys...) {
			http.Error(w, "too many pages opened, slow down", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientAddr returns the client host without its port. chi's RealIP
// middleware has already replaced RemoteAddr when a proxy header is set.
func clientAddr(r *http.Request) string {
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
