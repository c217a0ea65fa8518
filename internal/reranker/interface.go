// Package reranker defines the cross-encoder reranker contract used by the
// optional rerank stage of hybrid search and a small registry of
// named backends.
package reranker

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Reranker re-scores a query/document pairing with a model that attends to
// both texts jointly, typically more precise than the bi-encoder similarity
// used by the semantic search tiers.
type Reranker interface {
	// Rerank returns one score per document, parallel to documents. Higher
	// is more relevant; scores are not required to be on any fixed scale.
	Rerank(ctx context.Context, query string, documents []string) ([]float64, error)

	// ID identifies the backend and model for logging and result metadata.
	ID() string
}

// Backend enumerates the supported reranker backends.
type Backend string

const (
	// BackendNone disables reranking; the fused order is kept as-is.
	BackendNone Backend = "none"
	// BackendHTTP calls an externally hosted cross-encoder scoring service
	// (e.g. a local sidecar serving one of the registered models below).
	BackendHTTP Backend = "http"
)

// Config selects and configures a reranker backend.
type Config struct {
	Backend Backend
	HTTP    HTTPConfig
}

// HTTPConfig configures the HTTP backend.
type HTTPConfig struct {
	// Endpoint is the scoring service base URL, e.g. "http://localhost:8931".
	Endpoint string
	// Model names which registered reranker the service is expected to be
	// serving; informational only, used for logging and result metadata.
	Model string
}

// Validate checks that all required fields for the selected backend are
// populated: a clear startup error instead of a first-request failure.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendNone:
		return nil
	case BackendHTTP:
		if c.HTTP.Endpoint == "" {
			return fmt.Errorf("reranker: backend %q requires HTTP.Endpoint to be set", c.Backend)
		}
		return nil
	default:
		return fmt.Errorf("reranker: unknown backend %q — valid values: none, http", c.Backend)
	}
}

// New constructs the Reranker for the configured backend. BackendNone
// returns a no-op Reranker rather than nil, so callers never need a type
// switch to decide whether reranking is active.
func New(cfg Config) (Reranker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendNone:
		return noneReranker{}, nil
	case BackendHTTP:
		return newHTTPReranker(cfg.HTTP), nil
	default:
		return nil, fmt.Errorf("reranker: unknown backend %q", cfg.Backend)
	}
}

// HealthCheckConfig lets callers probe backend availability before relying
// on it mid-query.
type HealthCheckConfig interface {
	GetURL() string
	GetBackend() Backend
	HealthCheck(ctx context.Context) error
}

type healthCheckCfg struct {
	url     string
	backend Backend
}

func (h *healthCheckCfg) GetURL() string      { return h.url }
func (h *healthCheckCfg) GetBackend() Backend { return h.backend }
func (h *healthCheckCfg) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("reranker: health check: %w", err)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("reranker: health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("reranker: health check: HTTP %d", resp.StatusCode)
	}
	return nil
}

// NewHealthCheckConfig constructs a HealthCheckConfig for the given backend,
// or nil for BackendNone (nothing to probe).
func NewHealthCheckConfig(cfg Config) HealthCheckConfig {
	if cfg.Backend != BackendHTTP {
		return nil
	}
	return &healthCheckCfg{url: cfg.HTTP.Endpoint + "/health", backend: cfg.Backend}
}
