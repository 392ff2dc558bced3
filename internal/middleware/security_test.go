package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecurityHeaders(t *testing.T) {
	secured := SecurityHeaders(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	secured.ServeHTTP(w, req)

	tests := []struct {
		header   string
		expected string
		contains bool
	}{
		{"X-Frame-Options", "DENY", false},
		{"X-Content-Type-Options", "nosniff", false},
		{"Referrer-Policy", "strict-origin-when-cross-origin", false},
		{"Content-Security-Policy", "default-src 'self'", true},
		{"Content-Security-Policy", "connect-src 'self' ws: wss:", true},
		{"Permissions-Policy", "camera=()", true},
	}

	for _, tc := range tests {
		got := w.Header().Get(tc.header)
		if tc.contains {
			assert.Contains(t, got, tc.expected, tc.header)
		} else {
			assert.Equal(t, tc.expected, got, tc.header)
		}
	}
}

func TestSecurityHeaders_PassesThrough(t *testing.T) {
	called := false
	secured := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte("Hello"))
	}))

	w := httptest.NewRecorder()
	secured.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, called)
	assert.Equal(t, "Hello", w.Body.String())
}

func TestNoStore(t *testing.T) {
	w := httptest.NewRecorder()
	NoStore(http.HandlerFunc(okHandler)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, http.StatusOK, w.Code)
}
