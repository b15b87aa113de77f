package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	pkghttp "github.com/BradenHooton/projectgrid/pkg/http"
)

// automationAgents are User-Agent fragments of scripted clients
var automationAgents = []string{
	"curl/", "wget/", "python-requests", "python-urllib", "go-http-client",
	"httpclient", "okhttp", "libwww-perl", "scrapy", "headlesschrome", "phantomjs",
}

// BotGuard rejects requests from scripted clients on the public auth routes.
// A disabled guard passes everything through.
func BotGuard(enabled bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if reason := botReason(r.UserAgent()); reason != "" {
				logger.WarnContext(r.Context(), "request rejected by bot protection",
					slog.String("path", r.URL.Path),
					slog.String("reason", reason))
				pkghttp.WriteError(w, http.StatusBadRequest, "ValidationError", "bot_detected", "Request blocked by bot protection")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func botReason(userAgent string) string {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return "missing user agent"
	}
	for _, fragment := range automationAgents {
		if strings.Contains(ua, fragment) {
			return "automation agent"
		}
	}
	return ""
}
