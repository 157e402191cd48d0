package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

// UserIDKey is the context key for the acting user's id.
const UserIDKey contextKey = "user_id"

// DefaultUser is the id assumed when no identity header is present.
// Authentication is mocked; every request resolves to some local user.
const DefaultUser = "local"

// UserExtractor resolves the acting user from the X-User-Id header, then
// the user query parameter, falling back to the local default.
func UserExtractor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := strings.TrimSpace(r.Header.Get("X-User-Id"))
		if user == "" {
			user = strings.TrimSpace(r.URL.Query().Get("user"))
		}
		if user == "" {
			user = DefaultUser
		}

		ctx := context.WithValue(r.Context(), UserIDKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUser retrieves the acting user id from the request context.
func GetUser(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return DefaultUser
}
