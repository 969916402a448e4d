package middleware

import (
	"net"
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the number of per-client limiters kept.
const maxTrackedClients = 10000

// RateLimiter limits requests per client address.
type RateLimiter struct {
	limiters *lru.Cache[string, *rate.Limiter]
	rate     rate.Limit
	burst    int
	logger   *zap.Logger
	onReject func()
}

// NewRateLimiter creates a limiter allowing rps requests per second with the
// given burst. onReject, if set, is called for every rejected request.
func NewRateLimiter(rps float64, burst int, logger *zap.Logger, onReject func()) *RateLimiter {
	cache, _ := lru.New[string, *rate.Limiter](maxTrackedClients)
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: cache,
		rate:     rate.Limit(rps),
		burst:    burst,
		logger:   logger,
		onReject: onReject,
	}
}

// getLimiter returns the limiter for key, creating it on first use.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	if l, ok := rl.limiters.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(rl.rate, rl.burst)
	if prev, ok, _ := rl.limiters.PeekOrAdd(key, l); ok {
		return prev
	}
	return l
}

// Handler returns the rate limiting middleware handler.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !rl.getLimiter(key).Allow() {
			rl.logger.Warn("rate limit exceeded",
				zap.String("client", key),
				zap.String("path", r.URL.Path),
			)
			if rl.onReject != nil {
				rl.onReject()
			}
			w.Header().Set("Retry-After", "1")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
