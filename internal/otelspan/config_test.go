package otelspan

import "testing"

func TestConfigFromEnvDefaultsToDisabled(t *testing.T) {
	cfg, err := ConfigFromEnv("0.1.0")
	if err != nil {
		t.Fatalf("config from env: %v", err)
	}
	if cfg.Enabled {
		t.Errorf("want tracing disabled with no env vars set")
	}
}

func TestConfigFromEnvRequiresEndpointWhenEnabled(t *testing.T) {
	t.Setenv("CASS_OTEL_ENABLED", "true")
	t.Setenv("CASS_OTEL_ENDPOINT", "")
	if _, err := ConfigFromEnv("0.1.0"); err == nil {
		t.Fatalf("want an error when enabled without an endpoint")
	}
}

func TestConfigFromEnvParsesValues(t *testing.T) {
	t.Setenv("CASS_OTEL_ENABLED", "true")
	t.Setenv("CASS_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("CASS_OTEL_INSECURE", "false")
	t.Setenv("CASS_OTEL_SAMPLE_RATIO", "0.5")

	cfg, err := ConfigFromEnv("0.1.0")
	if err != nil {
		t.Fatalf("config from env: %v", err)
	}
	if !cfg.Enabled || cfg.Endpoint != "http://localhost:4318" || cfg.Insecure || cfg.SampleRatio != 0.5 {
		t.Errorf("unexpected config: %+v", cfg)
	}
}
