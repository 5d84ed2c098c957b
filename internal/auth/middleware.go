package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/storage"
)

// CookieName carries the session token for browser clients.
const CookieName = "ebilling_session"

type contextKey string

const sessionContextKey contextKey = "session"

// SessionFromContext returns the session Middleware attached, if any.
func SessionFromContext(ctx context.Context) (*storage.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey).(*storage.Session)
	return sess, ok
}

// TokenFromRequest reads the bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// Middleware attaches the caller's session to the request context. Requests
// without credentials, or with a stale cookie, pass through anonymously; a bad
// Authorization header gets a 401.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasHeader := r.Header.Get("Authorization") != ""
		token := TokenFromRequest(r)
		if token == "" && !hasHeader {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := s.Authenticate(r.Context(), token)
		switch {
		case err == nil:
			ctx := context.WithValue(r.Context(), sessionContextKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		case !IsUnauthorized(err):
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		case hasHeader:
			http.Error(w, "Invalid token", http.StatusUnauthorized)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// RequirePermission rejects anonymous callers with 401 and callers whose role
// lacks obj/act with 403.
func (s *Service) RequirePermission(obj, act string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		allowed, err := s.Enforce(sess.Role, obj, act)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if !allowed {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
