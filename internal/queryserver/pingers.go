package queryserver

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPEndpointPinger probes a backend HTTP service that exposes a plain
// reachability endpoint — the Ollama host behind the quality embedding tier,
// or an externally hosted reranker service. It satisfies Pinger and
// is registered with GET /api/ready by the command that wires up the
// embedder/reranker backends.
type HTTPEndpointPinger struct {
	name     string
	endpoint string
	client   *http.Client
}

// NewHTTPEndpointPinger constructs a pinger that issues a GET against
// endpoint and treats any non-5xx response as healthy — the services it
// probes (Ollama, a cross-encoder scorer) return 404 on an unrecognized
// path but still prove the process is up and accepting connections.
func NewHTTPEndpointPinger(name, endpoint string) *HTTPEndpointPinger {
	return &HTTPEndpointPinger{
		name:     name,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Name returns the backend label used in readiness responses.
func (p *HTTPEndpointPinger) Name() string { return p.name }

// Ping issues a GET to the backend's base endpoint. Returns nil if the
// server responds at all with a non-5xx status.
func (p *HTTPEndpointPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("unhealthy: HTTP %d", resp.StatusCode)
	}
	return nil
}
