package http

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/mmuslimabdulj/goat-dm/internal/auth"
)

type ctxKey int

const userKey ctxKey = iota

// userFrom returns the session user stored by the session guards
func userFrom(ctx context.Context) string {
	u, _ := ctx.Value(userKey).(string)
	return u
}

// requirePage redirects requests without a valid session to /login
func requirePage(sessions *auth.Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, err := sessions.CurrentUser(r)
			if err != nil {
				redirect(w, r, "/login")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, username)))
		})
	}
}

// requireAPI answers requests without a valid session with 401
func requireAPI(sessions *auth.Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, err := sessions.CurrentUser(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, username)))
		})
	}
}

const flashCookie = "flash"

// setFlash stores a one-shot message for the next page view
func setFlash(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(msg)),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads and clears the pending flash message
func popFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return ""
	}
	return string(raw)
}
