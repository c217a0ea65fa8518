// Package config provides YAML-based configuration for cass.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. CASS_CONFIG environment variable
//  3. ~/.cass/config.yaml
//  4. ./cass.yaml
//
// If no file is found the system runs entirely from env vars (backwards compatible).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Storage configures the primary corpus database.
	Storage StorageConfig `yaml:"storage"`

	// Embedding configures the optional quality-tier embedder.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Reranker configures the optional cross-encoder reranking backend.
	Reranker RerankerConfig `yaml:"reranker"`

	// Server configures the search/export HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Export configures default archive export behavior.
	Export ExportConfig `yaml:"export"`

	// Tracing configures OpenTelemetry span export.
	Tracing TracingConfig `yaml:"tracing"`
}

// StorageConfig holds primary-database settings.
type StorageConfig struct {
	// DBPath is the SQLite corpus database path. Defaults to ~/.cass/corpus.db.
	DBPath string `yaml:"db_path"`
	// IndexPath is the vector index file path. Defaults alongside DBPath.
	IndexPath string `yaml:"index_path"`
}

// EmbeddingConfig holds quality-tier embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the backend: "" (disabled, fast tier only) or "ollama".
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// OllamaHost is the Ollama server base URL.
	OllamaHost string `yaml:"ollama_host"`
}

// RerankerConfig holds cross-encoder reranking backend settings.
type RerankerConfig struct {
	// Backend selects the reranker: "none" (default) or "http".
	Backend string `yaml:"backend"`
	// Endpoint is the HTTP reranker service base URL.
	Endpoint string `yaml:"endpoint"`
	// Model names the cross-encoder model the endpoint is expected to serve.
	Model string `yaml:"model"`
}

// ServerConfig holds HTTP server settings for `cass serve`.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var CASS_API_KEY.
	APIKey string `yaml:"api_key"`
	// ExportDir is the directory `serve`-initiated exports are written under.
	ExportDir string `yaml:"export_dir"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// ExportConfig holds default archive export settings.
type ExportConfig struct {
	// ChunkSize is the default bundle chunk size in bytes; 0 selects the
	// 1 MiB default.
	ChunkSize int `yaml:"chunk_size"`
	// PathMode is the default source-path rewrite mode: "relative",
	// "basename", "full", or "hash-prefix-16".
	PathMode string `yaml:"path_mode"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	// Enabled turns on span export.
	Enabled bool `yaml:"enabled"`
	// Endpoint is the OTLP/HTTP collector endpoint.
	Endpoint string `yaml:"endpoint"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"CASS_DB_PATH", func(c *Config) string { return c.Storage.DBPath }},
	{"CASS_INDEX_PATH", func(c *Config) string { return c.Storage.IndexPath }},
	{"CASS_EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"CASS_EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"CASS_EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Embedding.OllamaHost }},
	{"CASS_RERANKER_BACKEND", func(c *Config) string { return c.Reranker.Backend }},
	{"CASS_RERANKER_ENDPOINT", func(c *Config) string { return c.Reranker.Endpoint }},
	{"CASS_RERANKER_MODEL", func(c *Config) string { return c.Reranker.Model }},
	{"CASS_SERVER_HOST", func(c *Config) string { return c.Server.Host }},
	{"CASS_SERVER_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"CASS_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"CASS_EXPORT_DIR", func(c *Config) string { return c.Server.ExportDir }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"CASS_EXPORT_CHUNK_SIZE", func(c *Config) string { return intStr(c.Export.ChunkSize) }},
	{"CASS_EXPORT_PATH_MODE", func(c *Config) string { return c.Export.PathMode }},
	{"CASS_OTEL_ENABLED", func(c *Config) string { return boolStr(c.Tracing.Enabled) }},
	{"CASS_OTEL_ENDPOINT", func(c *Config) string { return c.Tracing.Endpoint }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("CASS_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".cass", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("cass.yaml"); err == nil {
		return "cass.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
