package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// SessionCookie names the browser session cookie.
const SessionCookie = "palmview_sid"

// Session makes sure every request carries a session id, issuing a cookie
// when the browser has none or sends a malformed one.
func Session(maxAge time.Duration, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(SessionCookie); err == nil && ValidateSessionID(c.Value) == nil {
				id = c.Value
			} else {
				id = uuid.NewString()
			}
			// refresh on every request so the cookie outlives active use
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(maxAge.Seconds()),
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), SessionKey, id)))
		})
	}
}

// GetSessionFromContext returns the session id set by Session.
func GetSessionFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(SessionKey).(string); ok {
		return id
	}
	return ""
}
