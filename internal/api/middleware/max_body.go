package middleware

import (
	"net/http"

	"github.com/loreworks/mwassist/internal/api"
)

// MaxBodyBytes caps request body size. Oversized Content-Length is rejected
// up front; chunked bodies are capped by MaxBytesReader as they stream in, so
// a lying client cannot buffer more than the limit server-side.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Body == nil:
			case r.ContentLength > limit:
				api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			default:
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
