// Package otelspan wires OpenTelemetry tracing into hybrid search: each
// search call and its rerank stage get a span, and spans are no-ops until a
// collector endpoint is actually configured.
package otelspan

import (
	"fmt"
	"os"
	"strconv"
)

// Config controls whether and where spans are exported.
type Config struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	Insecure       bool
	SampleRatio    float64
}

// ConfigFromEnv builds a Config from CASS_OTEL_* environment variables.
// Tracing is off
// by default: a fresh checkout with no collector configured should never
// block on a dial that will never succeed.
func ConfigFromEnv(serviceVersion string) (Config, error) {
	cfg := Config{
		ServiceName:    "cass",
		ServiceVersion: serviceVersion,
		Insecure:       true,
		SampleRatio:    1.0,
	}

	if v := os.Getenv("CASS_OTEL_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("otelspan: parse CASS_OTEL_ENABLED: %w", err)
		}
		cfg.Enabled = enabled
	}
	if v := os.Getenv("CASS_OTEL_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("CASS_OTEL_INSECURE"); v != "" {
		insecure, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("otelspan: parse CASS_OTEL_INSECURE: %w", err)
		}
		cfg.Insecure = insecure
	}
	if v := os.Getenv("CASS_OTEL_SAMPLE_RATIO"); v != "" {
		ratio, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("otelspan: parse CASS_OTEL_SAMPLE_RATIO: %w", err)
		}
		cfg.SampleRatio = ratio
	}

	if cfg.Enabled && cfg.Endpoint == "" {
		return Config{}, fmt.Errorf("otelspan: CASS_OTEL_ENDPOINT is required when tracing is enabled")
	}
	return cfg, nil
}
