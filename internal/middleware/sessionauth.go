// Package middleware provides HTTP middlewares for authentication, rate
// limiting, metrics and logging.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/atinyakov/observer/internal/models"
	"github.com/atinyakov/observer/internal/service"
)

type ctxKey string

const userKey ctxKey = "user"

// AuthScheme is the Authorization scheme carrying a session token.
const AuthScheme = "Session-ID"

// Authenticator resolves a session token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.User, error)
}

// SessionAuth is a middleware that requires "Authorization: Session-ID <token>".
//
// On success the resolved user is stored in the request context, so it can
// be used downstream as the authenticated user. A missing, malformed,
// unknown or expired session yields 401.
func SessionAuth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := SessionToken(r)
			if !ok {
				http.Error(w, "session required", http.StatusUnauthorized)
				return
			}
			u, err := a.Authenticate(r.Context(), token)
			if errors.Is(err, service.ErrUnauthorized) {
				http.Error(w, "invalid session", http.StatusUnauthorized)
				return
			}
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			ctx := context.WithValue(r.Context(), userKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionToken extracts the token from the Authorization header.
func SessionToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || scheme != AuthScheme {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// UserFromContext returns the authenticated user stored by SessionAuth.
func UserFromContext(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(userKey).(models.User)
	return u, ok
}

// GetUserIDFromContext extracts the authenticated user ID from the request
// context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	u, _ := UserFromContext(ctx)
	return u.ID
}

// WithUser returns ctx carrying u, as SessionAuth does.
func WithUser(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}
