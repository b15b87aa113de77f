package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/projectgrid/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// DefaultAuthRateLimit returns the limit for the public auth endpoints
func DefaultAuthRateLimit(perMinute int) RateLimitConfig {
	if perMinute <= 0 {
		perMinute = 10
	}
	return RateLimitConfig{Requests: perMinute, Window: time.Minute}
}

// RateLimitByIP limits requests per client address. Forwarded headers are only
// honoured from the resolver's trusted proxies.
func RateLimitByIP(config RateLimitConfig, ips *pkghttp.ClientIPResolver) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return ips.ClientIP(r), nil
		}, httprate.KeyByEndpoint),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Too many requests. Please try again later")
		}),
	)
}
