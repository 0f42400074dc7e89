// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.parley/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Server: backend base URL and request timeout
//   - Conversation: context length sent with each query
//   - Upload: per-kind staging caps
//   - Voice: capture sample rate
//   - History: fetch debounce window
//   - Client: rate limiting and retry for backend calls
//   - Telemetry: OTLP trace export (see telemetry.go)
//
// Security: Sensitive data (API keys) are never logged; config directory uses 0750 permissions.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidServerURL indicates the backend server URL is missing or malformed.
	ErrInvalidServerURL = errors.New("invalid server URL")

	// ErrInvalidTimeout indicates the request timeout is out of range.
	ErrInvalidTimeout = errors.New("invalid request timeout")

	// ErrInvalidContextLength indicates the context length is out of range.
	ErrInvalidContextLength = errors.New("invalid context length")

	// ErrInvalidUploadCap indicates an upload staging cap is out of range.
	ErrInvalidUploadCap = errors.New("invalid upload cap")

	// ErrInvalidSampleRate indicates the voice capture sample rate is unsupported.
	ErrInvalidSampleRate = errors.New("invalid sample rate")

	// ErrInvalidDebounce indicates the history debounce window is out of range.
	ErrInvalidDebounce = errors.New("invalid debounce window")

	// ErrInvalidRateLimit indicates the client rate limit is out of range.
	ErrInvalidRateLimit = errors.New("invalid rate limit")

	// ErrInvalidRetry indicates the retry policy values are out of range.
	ErrInvalidRetry = errors.New("invalid retry policy")
)

const (
	// DefaultContextLength is the number of history messages sent with each query.
	DefaultContextLength = 10

	// DefaultUploadCap is the per-kind staging cap for attached images and files.
	DefaultUploadCap = 5

	// DefaultSampleRate is the voice capture sample rate in Hz.
	DefaultSampleRate = 16000

	// DefaultHistoryDebounceMS is the quiet period before a history fetch fires.
	DefaultHistoryDebounceMS = 300
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (API keys, tokens), update MarshalJSON.
type Config struct {
	// Backend connection
	ServerURL      string `mapstructure:"server_url" json:"server_url"`
	RequestTimeout int    `mapstructure:"request_timeout_seconds" json:"request_timeout_seconds"`

	// Conversation history sent with each query
	ContextLength int `mapstructure:"context_length" json:"context_length"`

	// Upload staging caps (per kind: images and files independently)
	MaxUploadImages int `mapstructure:"max_upload_images" json:"max_upload_images"`
	MaxUploadFiles  int `mapstructure:"max_upload_files" json:"max_upload_files"`

	// Voice capture sample rate in Hz
	SampleRate int `mapstructure:"sample_rate" json:"sample_rate"`

	// History fetch debounce window in milliseconds
	HistoryDebounceMS int `mapstructure:"history_debounce_ms" json:"history_debounce_ms"`

	// Client-side rate limiting and retry for backend calls
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`
	RetryAttempts  int     `mapstructure:"retry_attempts" json:"retry_attempts"`
	RetryBackoffMS int     `mapstructure:"retry_backoff_ms" json:"retry_backoff_ms"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	// Observability configuration (see telemetry.go for type definition)
	Telemetry TelemetryConfig `mapstructure:"telemetry" json:"telemetry"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.parley/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".parley")

	// Ensure directory exists (use 0750 permission for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	// Configure Viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	// Set default values
	setDefaults()

	// Bind environment variables
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	// Use Unmarshal to automatically map to struct (type-safe)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Backend defaults (the agent service listens on 8000 by default)
	viper.SetDefault("server_url", "http://localhost:8000")
	viper.SetDefault("request_timeout_seconds", 30)

	// Conversation defaults
	viper.SetDefault("context_length", DefaultContextLength)

	// Upload staging defaults
	viper.SetDefault("max_upload_images", DefaultUploadCap)
	viper.SetDefault("max_upload_files", DefaultUploadCap)

	// Voice capture defaults
	viper.SetDefault("sample_rate", DefaultSampleRate)

	// History cache defaults
	viper.SetDefault("history_debounce_ms", DefaultHistoryDebounceMS)

	// Client rate limiting and retry defaults
	viper.SetDefault("rate_limit_rps", 5.0)
	viper.SetDefault("rate_limit_burst", 10)
	viper.SetDefault("retry_attempts", 3)
	viper.SetDefault("retry_backoff_ms", 500)

	// Logging defaults
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", false)

	// Telemetry defaults (endpoint empty = tracing disabled)
	viper.SetDefault("telemetry.endpoint", "")
	viper.SetDefault("telemetry.environment", "dev")
	viper.SetDefault("telemetry.service_name", "parley")
}

// bindEnvVariables binds environment variable overrides explicitly.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	// Backend connection overrides
	mustBind("server_url", "PARLEY_SERVER_URL")
	mustBind("request_timeout_seconds", "PARLEY_REQUEST_TIMEOUT")

	// Conversation overrides
	mustBind("context_length", "PARLEY_CONTEXT_LENGTH")

	// Logging overrides
	mustBind("log_level", "PARLEY_LOG_LEVEL")
	mustBind("log_json", "PARLEY_LOG_JSON")

	// Telemetry overrides (API key only ever comes from the environment)
	mustBind("telemetry.endpoint", "PARLEY_TELEMETRY_ENDPOINT")
	mustBind("telemetry.api_key", "PARLEY_TELEMETRY_API_KEY")
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full-width blocks U+2588) to avoid substring matching
// Previous attempts:
// - "****" failed: secrets with "*" leaked
// - "[REDACTED]" failed: secrets with "A", "D", "E", etc. leaked
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: For secrets <=8 chars, fully masks to prevent substring attacks.
// For longer secrets, shows partial chars with unique separator.
//
// THREAT MODEL: This defends against accidental logging of real secrets.
// It is NOT cryptographically secure - if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	// Fully mask short secrets to prevent substring matching attacks
	// Example attack: input "00***" → output "00******" contains "00***"
	if len(s) <= 8 {
		return maskedValue
	}
	// For longer secrets, show first/last 2 chars for debug utility
	// Example: "my_long_secret_key_123" → "my<████████>23"
	prefix := make([]byte, 2)
	suffix := make([]byte, 2)
	copy(prefix, s[:2])
	copy(suffix, s[len(s)-2:])
	return string(prefix) + "<" + maskedValue + ">" + string(suffix)
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - Telemetry.APIKey (via TelemetryConfig.MarshalJSON)
//
// When adding new sensitive fields, update this method or the nested struct's MarshalJSON.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	// Note: Telemetry.APIKey is handled by its own MarshalJSON
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// Timeout returns the request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// HistoryDebounce returns the history fetch debounce window as a duration.
func (c *Config) HistoryDebounce() time.Duration {
	return time.Duration(c.HistoryDebounceMS) * time.Millisecond
}

// RetryBackoff returns the initial retry backoff as a duration.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMS) * time.Millisecond
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
