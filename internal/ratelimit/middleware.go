package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/backend-jasa/internal/common"
	"github.com/noah-isme/backend-jasa/internal/obs"
)

// Config sets the budget of one limited route: Max events per Window for each Key.
type Config struct {
	Scope  string
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler enforces a Config. Limiter errors fail open and are reported to OnError.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
	Now     func() time.Time
}

// ByClientIP keys requests by client address under a route scope.
func ByClientIP(scope string) func(*http.Request) string {
	return func(r *http.Request) string {
		return scope + ":" + common.ClientIP(r)
	}
}

func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Limiter == nil || h.Config.Key == nil || h.Config.Max <= 0 {
		return next
	}
	limit := strconv.Itoa(h.Config.Max)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, resetAt, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", limit)
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
		if allowed {
			next.ServeHTTP(w, r)
			return
		}

		if obs.RateLimitedTotal != nil {
			obs.RateLimitedTotal.WithLabelValues(h.scope()).Inc()
		}
		headers.Set("Retry-After", strconv.Itoa(h.retryAfter(resetAt)))
		common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", map[string]any{"retryAfter": h.retryAfter(resetAt)})
	})
}

// retryAfter rounds up to whole seconds so clients never retry early.
func (h Handler) retryAfter(resetAt time.Time) int {
	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	secs := math.Ceil(resetAt.Sub(now).Seconds())
	if secs < 0 {
		return 0
	}
	return int(secs)
}

func (h Handler) scope() string {
	if h.Config.Scope == "" {
		return "default"
	}
	return h.Config.Scope
}
