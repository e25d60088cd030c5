// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	AWS      AWSConfig
	Coaching CoachingConfig
	Email    EmailConfig
	Report   ReportConfig
	Archive  ArchiveConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 120s).
	// Coaching generation waits on the LLM, so keep this above COACHING_TIMEOUT.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"120s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 90s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"90s"`

	// AllowedOrigins lists CORS origins for the dashboard front-end
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// EnsureSchema applies the embedded schema on startup (default: true)
	EnsureSchema bool `env:"DB_ENSURE_SCHEMA" default:"true"`
}

// ImportConfig holds CSV import settings.
type ImportConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 10MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrent is the maximum number of parallel import sessions (default: 5)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an import slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single import (default: 5m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"5m"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ImportLimit is requests per minute for import endpoints (default: 10)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"10"`

	// RedisURL switches the limiter to a shared Redis counter when set
	RedisURL string `env:"REDIS_URL"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey enforces X-API-Key on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// AWSConfig holds settings shared by the AWS clients.
type AWSConfig struct {
	// Region is the AWS region for Bedrock, SES and S3 (default: us-east-1)
	Region string `env:"AWS_REGION" envAlt:"AWS_DEFAULT_REGION" default:"us-east-1"`
}

// CoachingConfig holds AI coaching and metrics settings.
type CoachingConfig struct {
	// Enabled turns on episode and team email generation (default: false)
	Enabled bool `env:"COACHING_ENABLED" default:"false"`

	// ModelID is the Bedrock model identifier
	ModelID string `env:"COACHING_MODEL_ID" default:"anthropic.claude-3-haiku-20240307-v1:0"`

	// MaxTokens caps the LLM response length (default: 1500)
	MaxTokens int `env:"COACHING_MAX_TOKENS" default:"1500"`

	// Temperature is the sampling temperature (default: 0.4)
	Temperature float64 `env:"COACHING_TEMPERATURE" default:"0.4"`

	// Timeout bounds a single LLM call (default: 60s)
	Timeout time.Duration `env:"COACHING_TIMEOUT" default:"60s"`

	// MonthlyItemTarget is the per-producer VC items target (default: 40)
	MonthlyItemTarget int `env:"COACHING_MONTHLY_ITEM_TARGET" default:"40"`

	// DailyQHHTarget is the quote pace target in QHH per logged day (default: 5)
	DailyQHHTarget float64 `env:"COACHING_DAILY_QHH_TARGET" default:"5"`

	// PromptFile overrides the embedded prompt catalogue
	PromptFile string `env:"COACHING_PROMPT_FILE"`
}

// EmailConfig holds outbound email settings.
type EmailConfig struct {
	// Enabled sends through SES; otherwise messages are only logged (default: false)
	Enabled bool `env:"EMAIL_ENABLED" default:"false"`

	// FromAddress is the verified SES sender
	FromAddress string `env:"EMAIL_FROM_ADDRESS"`

	// FromName is the display name on outgoing mail (default: Sales Ops)
	FromName string `env:"EMAIL_FROM_NAME" default:"Sales Ops"`

	// Recipients is the default team report distribution list
	Recipients []string `env:"EMAIL_RECIPIENTS"`
}

// ReportConfig holds weekly team report scheduler settings.
type ReportConfig struct {
	// Enabled starts the weekly report scheduler (default: false)
	Enabled bool `env:"REPORT_ENABLED" default:"false"`

	// CheckInterval is how often the scheduler wakes up (default: 1h)
	CheckInterval time.Duration `env:"REPORT_CHECK_INTERVAL" default:"1h"`

	// SendDay is the weekday the previous week's report goes out (default: monday)
	SendDay string `env:"REPORT_SEND_DAY" default:"monday"`
}

// ArchiveConfig holds raw CSV archive settings.
type ArchiveConfig struct {
	// Bucket is the S3 bucket for uploaded files; empty disables archiving
	Bucket string `env:"ARCHIVE_S3_BUCKET"`

	// Prefix is the key prefix inside the bucket (default: imports)
	Prefix string `env:"ARCHIVE_S3_PREFIX" default:"imports"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Weekday parses SendDay. Unknown values fall back to Monday.
func (c *ReportConfig) Weekday() time.Weekday {
	if d, ok := weekdays[strings.ToLower(strings.TrimSpace(c.SendDay))]; ok {
		return d
	}
	return time.Monday
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}
