package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// TestLoadDefaults tests that default configuration values are loaded correctly
func TestLoadDefaults(t *testing.T) {
	// Reset Viper singleton to avoid interference from other tests
	viper.Reset()

	// Create temporary config directory (no config.yaml = pure defaults)
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ServerURL != "http://localhost:8000" {
		t.Errorf("expected default ServerURL 'http://localhost:8000', got %q", cfg.ServerURL)
	}

	if cfg.RequestTimeout != 30 {
		t.Errorf("expected default RequestTimeout 30, got %d", cfg.RequestTimeout)
	}

	if cfg.ContextLength != DefaultContextLength {
		t.Errorf("expected default ContextLength %d, got %d", DefaultContextLength, cfg.ContextLength)
	}

	if cfg.MaxUploadImages != DefaultUploadCap {
		t.Errorf("expected default MaxUploadImages %d, got %d", DefaultUploadCap, cfg.MaxUploadImages)
	}

	if cfg.MaxUploadFiles != DefaultUploadCap {
		t.Errorf("expected default MaxUploadFiles %d, got %d", DefaultUploadCap, cfg.MaxUploadFiles)
	}

	if cfg.SampleRate != DefaultSampleRate {
		t.Errorf("expected default SampleRate %d, got %d", DefaultSampleRate, cfg.SampleRate)
	}

	if cfg.HistoryDebounceMS != DefaultHistoryDebounceMS {
		t.Errorf("expected default HistoryDebounceMS %d, got %d", DefaultHistoryDebounceMS, cfg.HistoryDebounceMS)
	}

	if cfg.RateLimitRPS != 5.0 {
		t.Errorf("expected default RateLimitRPS 5.0, got %f", cfg.RateLimitRPS)
	}

	if cfg.RetryAttempts != 3 {
		t.Errorf("expected default RetryAttempts 3, got %d", cfg.RetryAttempts)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("expected default LogLevel 'info', got %q", cfg.LogLevel)
	}

	if cfg.Telemetry.Enabled() {
		t.Error("telemetry should be disabled by default")
	}

	if cfg.Telemetry.ServiceName != "parley" {
		t.Errorf("expected default telemetry service name 'parley', got %q", cfg.Telemetry.ServiceName)
	}
}

// TestLoadConfigFile tests loading configuration from a file
func TestLoadConfigFile(t *testing.T) {
	// Reset Viper singleton to avoid interference from other tests
	viper.Reset()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	configDir := filepath.Join(tmpDir, ".parley")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configContent := `server_url: "https://assistant.example.com"
request_timeout_seconds: 60
context_length: 20
max_upload_images: 3
sample_rate: 44100
log_level: debug
`
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ServerURL != "https://assistant.example.com" {
		t.Errorf("expected ServerURL from file, got %q", cfg.ServerURL)
	}

	if cfg.RequestTimeout != 60 {
		t.Errorf("expected RequestTimeout 60 from file, got %d", cfg.RequestTimeout)
	}

	if cfg.ContextLength != 20 {
		t.Errorf("expected ContextLength 20 from file, got %d", cfg.ContextLength)
	}

	if cfg.MaxUploadImages != 3 {
		t.Errorf("expected MaxUploadImages 3 from file, got %d", cfg.MaxUploadImages)
	}

	// Values not in the file keep their defaults
	if cfg.MaxUploadFiles != DefaultUploadCap {
		t.Errorf("expected default MaxUploadFiles %d, got %d", DefaultUploadCap, cfg.MaxUploadFiles)
	}

	if cfg.SampleRate != 44100 {
		t.Errorf("expected SampleRate 44100 from file, got %d", cfg.SampleRate)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("expected LogLevel 'debug' from file, got %q", cfg.LogLevel)
	}
}

// TestLoadEnvOverride tests that environment variables override file values
func TestLoadEnvOverride(t *testing.T) {
	viper.Reset()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	configDir := filepath.Join(tmpDir, ".parley")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configContent := "server_url: \"http://file.example.com\"\n"
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("PARLEY_SERVER_URL", "http://env.example.com")
	t.Setenv("PARLEY_CONTEXT_LENGTH", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ServerURL != "http://env.example.com" {
		t.Errorf("expected env var to override file, got %q", cfg.ServerURL)
	}

	if cfg.ContextLength != 25 {
		t.Errorf("expected ContextLength 25 from env, got %d", cfg.ContextLength)
	}
}

// TestLoadInvalidConfig tests that validation failures surface from Load
func TestLoadInvalidConfig(t *testing.T) {
	viper.Reset()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	configDir := filepath.Join(tmpDir, ".parley")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configContent := "server_url: \"ftp://wrong.example.com\"\n"
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail for non-http server URL")
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := &Config{
		RequestTimeout:    45,
		HistoryDebounceMS: 300,
		RetryBackoffMS:    500,
	}

	if got := cfg.Timeout(); got != 45*time.Second {
		t.Errorf("Timeout() = %v, want 45s", got)
	}
	if got := cfg.HistoryDebounce(); got != 300*time.Millisecond {
		t.Errorf("HistoryDebounce() = %v, want 300ms", got)
	}
	if got := cfg.RetryBackoff(); got != 500*time.Millisecond {
		t.Errorf("RetryBackoff() = %v, want 500ms", got)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"short fully masked", "abc", maskedValue},
		{"exactly eight fully masked", "12345678", maskedValue},
		{"long shows edges", "my_long_secret_key_123", "my<" + maskedValue + ">23"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskSecret(tt.input); got != tt.want {
				t.Errorf("maskSecret(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestConfigStringMasksSecrets verifies secrets never leak through String()
func TestConfigStringMasksSecrets(t *testing.T) {
	cfg := Config{
		ServerURL: "http://localhost:8000",
		Telemetry: TelemetryConfig{
			APIKey:   "super-secret-telemetry-key",
			Endpoint: "localhost:4318",
		},
	}

	s := cfg.String()
	if strings.Contains(s, "super-secret-telemetry-key") {
		t.Errorf("String() leaked the telemetry API key: %s", s)
	}
	if !strings.Contains(s, "localhost:4318") {
		t.Errorf("String() should include non-sensitive fields: %s", s)
	}
}

func TestTelemetryMarshalJSON(t *testing.T) {
	tc := TelemetryConfig{
		APIKey:      "another-very-long-api-key",
		Endpoint:    "collector:4318",
		Environment: "prod",
		ServiceName: "parley",
	}

	data, err := json.Marshal(tc)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	if strings.Contains(string(data), "another-very-long-api-key") {
		t.Errorf("MarshalJSON leaked the API key: %s", data)
	}
}
