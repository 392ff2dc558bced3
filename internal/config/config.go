package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
	"golang.org/x/time/rate"
)

// Store drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Translation providers
const (
	TranslateNone   = "none"
	TranslateLibre  = "libre"
	TranslateGemini = "gemini"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port string

	// Security
	AllowedOrigins []string
	SessionSecret  string
	SessionTTL     time.Duration

	// Rate Limiting
	RateLimitAPI    rate.Limit
	RateLimitWS     rate.Limit
	RateLimitStrict rate.Limit

	// Logging
	LogLevel string

	// WebSocket
	MaxMessageSize int

	// Storage
	StoreDriver   string
	DatabaseURL   string
	MongoDatabase string

	// Translation
	TranslateProvider string
	TranslateURL      string
	TranslateAPIKey   string
	TranslateTarget   string
	TranslateTimeout  time.Duration
	GeminiAPIKey      string
	GeminiModel       string

	// Contacts
	SuggestCount int
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Port:              "8080",
		AllowedOrigins:    []string{"http://localhost:8080", "http://localhost:3000"},
		SessionSecret:     "", // empty: a random per-process secret is generated
		SessionTTL:        domain.SessionTTL,
		RateLimitAPI:      domain.DefaultRateLimitAPI,
		RateLimitWS:       domain.DefaultRateLimitWS,
		RateLimitStrict:   domain.DefaultRateLimitStrict,
		LogLevel:          "info", // Options: debug, info, warn, error, silent
		MaxMessageSize:    domain.MaxMessageSize,
		StoreDriver:       DriverSQLite,
		DatabaseURL:       "dmchat.db",
		MongoDatabase:     "chatapp",
		TranslateProvider: TranslateNone,
		TranslateURL:      "http://localhost:5000/translate",
		TranslateTarget:   domain.DefaultTranslateTarget,
		TranslateTimeout:  domain.DefaultTranslateTimeout,
		GeminiModel:       "gemini-1.5-flash-latest",
		SuggestCount:      domain.DefaultSuggestCount,
	}
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	// Server
	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	// Security
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if secret := os.Getenv("SESSION_SECRET"); secret != "" {
		cfg.SessionSecret = secret
	}

	if hours, ok := positiveInt("SESSION_TTL_HOURS"); ok {
		cfg.SessionTTL = time.Duration(hours) * time.Hour
	}

	// Rate Limiting
	if val, ok := positiveInt("RATE_LIMIT_API"); ok {
		cfg.RateLimitAPI = rate.Limit(val)
	}
	if val, ok := positiveInt("RATE_LIMIT_WS"); ok {
		cfg.RateLimitWS = rate.Limit(val)
	}
	if val, ok := positiveInt("RATE_LIMIT_STRICT"); ok {
		cfg.RateLimitStrict = rate.Limit(val)
	}

	// Logging
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	// WebSocket
	if val, ok := positiveInt("MAX_MESSAGE_SIZE"); ok {
		cfg.MaxMessageSize = val
	}

	// Storage
	if driver := os.Getenv("STORE_DRIVER"); driver != "" {
		cfg.StoreDriver = strings.ToLower(driver)
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.DatabaseURL = url
	}
	if name := os.Getenv("MONGO_DATABASE"); name != "" {
		cfg.MongoDatabase = name
	}

	// Translation
	if provider := os.Getenv("TRANSLATE_PROVIDER"); provider != "" {
		cfg.TranslateProvider = strings.ToLower(provider)
	}
	if url := os.Getenv("TRANSLATE_URL"); url != "" {
		cfg.TranslateURL = url
	}
	if key := os.Getenv("TRANSLATE_API_KEY"); key != "" {
		cfg.TranslateAPIKey = key
	}
	if target := os.Getenv("TRANSLATE_TARGET"); target != "" {
		cfg.TranslateTarget = target
	}
	if secs, ok := positiveInt("TRANSLATE_TIMEOUT_SECONDS"); ok {
		cfg.TranslateTimeout = time.Duration(secs) * time.Second
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.GeminiAPIKey = key
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		cfg.GeminiModel = model
	}

	// Contacts
	if n, ok := positiveInt("SUGGEST_COUNT"); ok {
		cfg.SuggestCount = n
	}

	return cfg
}

// IsOriginAllowed checks if the origin is in the allowed list
func (c *Config) IsOriginAllowed(origin string) bool {
	// Empty origin is allowed (same-origin requests)
	if origin == "" {
		return true
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}
	return false
}

// positiveInt reads a strictly positive integer from the environment
func positiveInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return 0, false
	}
	return val, true
}

// parseOrigins parses comma-separated origins
func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
