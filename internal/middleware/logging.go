package middleware

import (
	"log"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// sessionForLog names the browser session of a request: the cookie it sent,
// or the one issued on this response. "-" when there is none.
func sessionForLog(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && ValidateSessionID(c.Value) == nil {
		return c.Value
	}
	for _, raw := range w.Header().Values("Set-Cookie") {
		if c, err := http.ParseSetCookie(raw); err == nil && c.Name == SessionCookie {
			return c.Value
		}
	}
	return "-"
}

// LoggingMiddleware logs one line per request. Query strings are left out
// since listing URLs may carry tracking tokens.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		log.Printf(
			"method=%s path=%s status=%d duration=%s bytes=%d ip=%s request_id=%s session=%s user_agent=%q",
			r.Method,
			r.URL.Path,
			wrapped.statusCode,
			time.Since(start),
			wrapped.written,
			r.RemoteAddr,
			chimw.GetReqID(r.Context()),
			sessionForLog(w, r),
			r.UserAgent(),
		)
	})
}
