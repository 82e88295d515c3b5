package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the web front end and the reference API
type Config struct {
	// Web front end
	HTTP HTTPConfig

	// Remote authentication API consumed by the front ends
	API APIConfig

	// Browser session storage
	Session SessionConfig

	// Redis Configuration
	Redis RedisConfig

	// Login/register throttling
	RateLimit RateLimitConfig

	// Logging Configuration
	Logging LoggingConfig

	// Reference API server
	AuthAPI AuthAPIConfig
}

// HTTPConfig holds the web front end listener configuration
type HTTPConfig struct {
	Address     string   `env:"HTTP_ADDRESS" envDefault:":3000"`
	CORSOrigins []string `env:"HTTP_CORS_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`
}

// APIConfig holds the remote API location
type APIConfig struct {
	BaseURL string        `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	Timeout time.Duration `env:"API_TIMEOUT" envDefault:"15s"`
}

// SessionConfig holds browser session configuration
type SessionConfig struct {
	Backend    string        `env:"SESSION_BACKEND" envDefault:"cookie"` // cookie, redis
	CookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"roleportal"`
	HashKey    string        `env:"SESSION_HASH_KEY"`  // hex, 32 or 64 bytes
	BlockKey   string        `env:"SESSION_BLOCK_KEY"` // hex, 16, 24 or 32 bytes
	Secure     bool          `env:"SESSION_SECURE" envDefault:"false"`
	TTL        time.Duration `env:"SESSION_TTL" envDefault:"0s"` // 0 = browser session
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
}

// RateLimitConfig holds per-client throttling of form submissions
type RateLimitConfig struct {
	PerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"20"`
	Burst     int `env:"RATE_LIMIT_BURST" envDefault:"5"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"` // json, console
}

// AuthAPIConfig holds the reference API configuration
type AuthAPIConfig struct {
	Address     string        `env:"AUTHAPI_ADDRESS" envDefault:":8080"`
	DatabaseURL string        `env:"AUTHAPI_DATABASE_URL" envDefault:"roleportal.sqlite"`
	JWTSecret   string        `env:"JWT_SECRET"`
	TokenTTL    time.Duration `env:"AUTHAPI_TOKEN_TTL" envDefault:"72h"`
	CORSOrigins []string      `env:"AUTHAPI_CORS_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.Session.Backend = strings.ToLower(cfg.Session.Backend)
	switch cfg.Session.Backend {
	case "cookie", "redis":
	default:
		return nil, fmt.Errorf("invalid SESSION_BACKEND %q, must be cookie or redis", cfg.Session.Backend)
	}

	if cfg.RateLimit.PerMinute < 0 || cfg.RateLimit.Burst < 0 {
		return nil, fmt.Errorf("rate limit values must not be negative")
	}

	return &cfg, nil
}

// SessionKeys decodes the cookie keys. Missing keys are generated, in which
// case generated is true and sessions will not survive a restart.
func (c SessionConfig) SessionKeys() (hashKey, blockKey []byte, generated bool, err error) {
	hashKey, gen1, err := decodeKey(c.HashKey, 32, "SESSION_HASH_KEY", 32, 64)
	if err != nil {
		return nil, nil, false, err
	}
	blockKey, gen2, err := decodeKey(c.BlockKey, 32, "SESSION_BLOCK_KEY", 16, 24, 32)
	if err != nil {
		return nil, nil, false, err
	}
	return hashKey, blockKey, gen1 || gen2, nil
}

// MaxAgeSeconds converts the session TTL to a cookie max age
func (c SessionConfig) MaxAgeSeconds() int {
	return int(c.TTL / time.Second)
}

func decodeKey(value string, size int, name string, allowed ...int) ([]byte, bool, error) {
	if value == "" {
		key := make([]byte, size)
		if _, err := rand.Read(key); err != nil {
			return nil, false, fmt.Errorf("failed to generate %s: %w", name, err)
		}
		return key, true, nil
	}

	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, false, fmt.Errorf("%s must be hex encoded: %w", name, err)
	}
	for _, n := range allowed {
		if len(key) == n {
			return key, false, nil
		}
	}
	return nil, false, fmt.Errorf("%s has invalid length %d bytes", name, len(key))
}
