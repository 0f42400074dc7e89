package config

import (
	"encoding/json"
	"fmt"
)

// TelemetryConfig holds OTLP trace export configuration.
//
// Tracing is disabled when Endpoint is empty.
// See internal/observability for detailed setup.
type TelemetryConfig struct {
	// APIKey is an optional collector API key sent as a request header
	APIKey string `mapstructure:"api_key" json:"api_key" sensitive:"true"`
	// Endpoint is the OTLP-over-HTTP collector endpoint (host:port)
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	// Environment is the deployment environment tag (default: dev)
	Environment string `mapstructure:"environment" json:"environment"`
	// ServiceName is the service name reported on spans (default: parley)
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// Enabled reports whether trace export is configured.
func (t TelemetryConfig) Enabled() bool {
	return t.Endpoint != ""
}

// MarshalJSON masks the API key so the config can be logged safely.
func (t TelemetryConfig) MarshalJSON() ([]byte, error) {
	type alias TelemetryConfig
	a := alias(t)
	a.APIKey = maskSecret(a.APIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal telemetry config: %w", err)
	}
	return data, nil
}
