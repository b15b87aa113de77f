package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/projectgrid/internal/models"
	pkghttp "github.com/BradenHooton/projectgrid/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	userContextKey   contextKey = "user"
	claimsContextKey contextKey = "claims"
)

// UserRepository fetches the account behind a session token
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// TokenVerifier verifies signed tokens for a purpose
type TokenVerifier interface {
	Verify(token string, purpose models.TokenPurpose) (*models.TokenClaims, error)
}

// AuthMiddleware accepts "Authorization: Bearer <login token>", loads the user and
// stores it in the request context. Tokens issued before the user's last password
// change are rejected.
func AuthMiddleware(tv TokenVerifier, users UserRepository, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "Missing or malformed authorization header")
				return
			}

			claims, err := tv.Verify(tokenString, models.PurposeLogin)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "Invalid or expired token")
				return
			}

			user, err := users.GetByID(r.Context(), claims.UserID())
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					pkghttp.WriteUnauthorized(w, "Invalid or expired token")
					return
				}
				logger.Error("failed to load session user", slog.String("user_id", claims.UserID()), slog.Any("error", err))
				pkghttp.WriteInternalError(w, "Internal server error")
				return
			}

			if issuedBeforePasswordChange(claims, user) {
				pkghttp.WriteUnauthorized(w, "Session is no longer valid. Please log in again")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			ctx = WithUser(ctx, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// iat has second precision, so the change time is truncated before comparing
func issuedBeforePasswordChange(claims *models.TokenClaims, user *models.User) bool {
	if user.PasswordChangedAt == nil || claims.IssuedAt == nil {
		return false
	}
	return claims.IssuedAt.Time.Before(user.PasswordChangedAt.Truncate(time.Second))
}

// WithUser returns a context carrying user
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the authenticated user, or nil
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

// GetUserFromContext extracts the authenticated user from the request
func GetUserFromContext(r *http.Request) *models.User {
	return UserFromContext(r.Context())
}

// ClaimsFromContext returns the verified session claims, or nil
func ClaimsFromContext(ctx context.Context) *models.TokenClaims {
	claims, _ := ctx.Value(claimsContextKey).(*models.TokenClaims)
	return claims
}
