package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mmuslimabdulj/goat-dm/internal/domain"
)

// CookieName is the name of the session cookie
const CookieName = "session"

// Sessions issues and validates signed session tokens carried in a cookie.
// The token subject is the username.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	secure bool
}

// NewSessions creates a session manager. secure marks cookies Secure.
func NewSessions(secret string, ttl time.Duration, secure bool) *Sessions {
	return &Sessions{secret: []byte(secret), ttl: ttl, secure: secure}
}

// Issue signs a token for username
func (s *Sessions) Issue(username string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate returns the username a token was issued for
func (s *Sessions) Validate(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", domain.ErrUnauthenticated
	}
	return claims.Subject, nil
}

// Login sets a fresh session cookie for username
func (s *Sessions) Login(w http.ResponseWriter, username string) error {
	token, err := s.Issue(username)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Logout expires the session cookie
func (s *Sessions) Logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// CurrentUser returns the username of the request's session
func (s *Sessions) CurrentUser(r *http.Request) (string, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", domain.ErrUnauthenticated
	}
	return s.Validate(c.Value)
}

// MinSecretLength is the shortest accepted signing secret; HS256 wants a key
// of at least 256 bits
const MinSecretLength = 32

var errWeakSecret = fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)

// CheckSecret rejects signing secrets too short to resist brute force
func CheckSecret(secret string) error {
	if len(secret) < MinSecretLength {
		return errWeakSecret
	}
	return nil
}

// GenerateSecret returns a random signing secret
func GenerateSecret() (string, error) {
	b := make([]byte, MinSecretLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ResolveSecret returns configured when it is strong enough. An empty value is
// replaced by a per-process random secret (generated reports this); sessions
// signed with it do not survive a restart.
func ResolveSecret(configured string) (secret string, generated bool, err error) {
	if configured == "" {
		secret, err = GenerateSecret()
		return secret, err == nil, err
	}
	if err := CheckSecret(configured); err != nil {
		return "", false, err
	}
	return configured, false, nil
}
