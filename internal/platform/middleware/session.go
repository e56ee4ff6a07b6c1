package middleware

import (
	"context"
	"net/http"
)

// SessionHeader carries the vault session a request belongs to.
const SessionHeader = "X-Session-ID"

type sessionContextKey struct{}

// SessionContext reads the session ID from the X-Session-ID header, or the
// session_id query parameter, and stores it in the request context.
func SessionContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(SessionHeader)
		if id == "" {
			id = r.URL.Query().Get("session_id")
		}
		if id != "" {
			ctx := context.WithValue(r.Context(), sessionContextKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetSessionID retrieves the session ID from the request context.
func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionContextKey{}).(string); ok {
		return id
	}
	return ""
}
