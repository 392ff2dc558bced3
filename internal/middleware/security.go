package middleware

import (
	"net/http"
)

// SecurityHeaders adds security headers to HTTP responses
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()

		// Prevent clickjacking
		h.Set("X-Frame-Options", "DENY")

		// Prevent MIME type sniffing
		h.Set("X-Content-Type-Options", "nosniff")

		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// Pages carry one inline script for the chat socket
		h.Set("Content-Security-Policy",
			"default-src 'self'; "+
				"script-src 'self' 'unsafe-inline'; "+
				"style-src 'self' 'unsafe-inline'; "+
				"img-src 'self' data:; "+
				"frame-ancestors 'none'; "+
				"form-action 'self'; "+
				"connect-src 'self' ws: wss:")

		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

		next.ServeHTTP(w, r)
	})
}

// NoStore marks responses as uncacheable. Used on pages and API responses
// that carry per-user data.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
