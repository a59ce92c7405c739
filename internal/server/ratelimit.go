package server

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
)

// RequestLimiter decides whether a user may make a request now.
type RequestLimiter interface {
	Allow(userID string) (ok bool, retryAfter time.Duration)
}

// RateLimitMiddleware applies limiter per authenticated user. It must run
// after AuthMiddleware; unauthenticated requests pass through untouched.
// Rejected requests get 429 rate_limited with a Retry-After header.
func RateLimitMiddleware(limiter RequestLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := GetAuth(r.Context())
			if auth == nil {
				next.ServeHTTP(w, r)
				return
			}
			if ok, retryAfter := limiter.Allow(auth.UserID); !ok {
				secs := int(math.Ceil(retryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				AddLogField(r.Context(), "rate_limited", "true")
				WriteError(w, domain.ErrRateLimit("Too many requests, slow down"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteUsageHeaders sets the x-ratelimit-*-generations headers describing the
// caller's monthly allowance. Unlimited tiers only get the reset header.
func WriteUsageHeaders(w http.ResponseWriter, u ports.Usage) {
	h := w.Header()
	if u.Limit > 0 {
		remaining := max(u.Limit-u.Current, 0)
		h.Set("x-ratelimit-limit-generations", strconv.Itoa(u.Limit))
		h.Set("x-ratelimit-remaining-generations", strconv.Itoa(remaining))
	}
	if !u.ResetAt.IsZero() {
		h.Set("x-ratelimit-reset-generations", u.ResetAt.UTC().Format(time.RFC3339))
	}
}
