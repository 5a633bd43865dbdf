package middleware

import (
	"net/http"
	"time"

	"github.com/BradenHooton/carelink/internal/auth"
	pkghttp "github.com/BradenHooton/carelink/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Name              string // metric label
	RequestsPerMinute int
}

// DefaultAuthRateLimit returns the limit for unauthenticated credential endpoints.
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{Name: "auth", RequestsPerMinute: 5}
}

// RateLimitByIP limits requests per client address. Forwarding headers only
// count when they come from a trusted proxy.
func RateLimitByIP(config RateLimitConfig, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return "ip:" + pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(limitExceeded(config.Name)),
	)
}

// RateLimitByUser limits requests per authenticated user, falling back to the
// client address when the access gate has not run.
func RateLimitByUser(config RateLimitConfig, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if user := auth.GetUserFromContext(r); user != nil {
				return "user:" + user.UserID, nil
			}
			return "ip:" + pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(limitExceeded(config.Name)),
	)
}

func limitExceeded(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rateLimitedTotal.WithLabelValues(name).Inc()
		pkghttp.WriteTooManyRequests(w, "Too many requests, please try again later")
	}
}
