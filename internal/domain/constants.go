package domain

import "time"

// ==== WebSocket Constants ====

// MaxMessageSize is the maximum allowed WebSocket frame size in bytes
const MaxMessageSize = 4096

// ==== Session Constants ====

// SessionTTL is the default lifetime of a login session
const SessionTTL = 24 * time.Hour

// ==== Rate Limit Constants ====

const (
	// DefaultRateLimitAPI is the default rate limit for API endpoints (requests/sec)
	DefaultRateLimitAPI = 10

	// DefaultRateLimitWS is the default rate limit for WebSocket connections (req/sec)
	DefaultRateLimitWS = 5

	// DefaultRateLimitStrict is the stricter rate limit for login and registration
	DefaultRateLimitStrict = 2
)

// ==== Messaging Constants ====

const (
	// DefaultTranslateTarget is the language outgoing messages are translated into
	DefaultTranslateTarget = "en"

	// AutoLanguage asks the translator to detect the source language
	AutoLanguage = "auto"

	// DefaultTranslateTimeout bounds the translation call on the send path
	DefaultTranslateTimeout = 5 * time.Second

	// DefaultSuggestCount is the size of the "people you may know" sample
	DefaultSuggestCount = 6
)
