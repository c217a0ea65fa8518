package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
storage:
  db_path: /data/corpus.db
embedding:
  provider: ollama
  model: nomic-embed-text
reranker:
  backend: http
  endpoint: http://localhost:8090
server:
  host: 0.0.0.0
  port: 9090
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	envKeys := []string{
		"CASS_DB_PATH", "CASS_EMBEDDING_PROVIDER", "CASS_EMBEDDING_MODEL",
		"CASS_RERANKER_BACKEND", "CASS_RERANKER_ENDPOINT",
		"CASS_SERVER_HOST", "CASS_SERVER_PORT",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"CASS_DB_PATH":            "/data/corpus.db",
		"CASS_EMBEDDING_PROVIDER": "ollama",
		"CASS_EMBEDDING_MODEL":    "nomic-embed-text",
		"CASS_RERANKER_BACKEND":   "http",
		"CASS_RERANKER_ENDPOINT":  "http://localhost:8090",
		"CASS_SERVER_HOST":        "0.0.0.0",
		"CASS_SERVER_PORT":        "9090",
		"LOG_LEVEL":               "debug",
		"LOG_FORMAT":              "text",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
embedding:
  provider: ollama
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var BEFORE loading — it should NOT be overwritten.
	t.Setenv("CASS_EMBEDDING_PROVIDER", "disabled-by-env")

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("CASS_EMBEDDING_PROVIDER"); got != "disabled-by-env" {
		t.Errorf("CASS_EMBEDDING_PROVIDER: expected env override %q, got %q", "disabled-by-env", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestIntStr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   int
		want string
	}{
		{0, ""},
		{8, "8"},
		{9090, "9090"},
	}
	for _, tt := range tests {
		if got := intStr(tt.in); got != tt.want {
			t.Errorf("intStr(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBoolStr(t *testing.T) {
	t.Parallel()
	if got := boolStr(false); got != "" {
		t.Errorf("boolStr(false) = %q, want empty", got)
	}
	if got := boolStr(true); got != "true" {
		t.Errorf("boolStr(true) = %q, want %q", got, "true")
	}
}
