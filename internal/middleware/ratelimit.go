package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
	"margin/internal/httputil"
)

// UserLimiter hands out one token bucket per user. Idle buckets expire, so a
// returning user starts with a full burst.
type UserLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	buckets *expirable.LRU[string, *rate.Limiter]
}

// NewUserLimiter allows rps sustained requests per user with the given burst
func NewUserLimiter(rps float64, burst int) *UserLimiter {
	return &UserLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		buckets: expirable.NewLRU[string, *rate.Limiter](10000, nil, 10*time.Minute),
	}
}

// Allow takes a token for userID. When none is left it reports how long
// until one is.
func (l *UserLimiter) Allow(userID string) (bool, time.Duration) {
	l.mu.Lock()
	lim, ok := l.buckets.Get(userID)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.buckets.Add(userID, lim)
	}
	l.mu.Unlock()
	if lim.Allow() {
		return true, 0
	}
	res := lim.Reserve()
	delay := res.Delay()
	res.Cancel()
	return false, delay
}

// RateLimit applies l to requests matched by match. Requests without a user
// are passed through; Auth has already rejected them where it matters.
func RateLimit(l *UserLimiter, match func(*http.Request) bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := httputil.GetUserID(r)
			if userID == "" || !match(r) {
				next.ServeHTTP(w, r)
				return
			}
			if ok, wait := l.Allow(userID); !ok {
				logger.Info("rate limited", "user_id", userID, "path", r.URL.Path)
				httputil.RespondRateLimited(w, wait)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
