package queryserver

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/rawwerks/cass-go/internal/hybrid"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// ExportDir is the directory POST /api/export writes completed archives
	// under. Required for the export endpoint to be usable.
	ExportDir string
}

// searcher is the interface handleSearch calls. *hybrid.Searcher satisfies
// it; tests inject a fake.
type searcher interface {
	Search(ctx context.Context, query string, filters hybrid.Filters, limit, offset int, mask hybrid.FieldMask, mode hybrid.Mode) ([]hybrid.Result, error)
}

// Server is the HTTP server that exposes search and export over the
// primary corpus store.
type Server struct {
	// search is the hybrid searcher that answers every /api/search request.
	search searcher
	// exportSrc is the primary store's connection, read by POST /api/export.
	// Nil disables the export endpoint.
	exportSrc *sql.DB
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
	// metrics holds the Prometheus metrics for this server instance.
	metrics *serverMetrics
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	// Query is the boolean-term query string.
	Query string `json:"query"`
	// AgentSlugs restricts results to these agents; empty means all.
	AgentSlugs []string `json:"agentSlugs,omitempty"`
	// WorkspacePaths restricts results to these workspaces; empty means all.
	WorkspacePaths []string `json:"workspacePaths,omitempty"`
	// Limit bounds the number of results returned (default 20).
	Limit int `json:"limit,omitempty"`
	// Offset skips this many fused results before returning Limit more.
	Offset int `json:"offset,omitempty"`
	// Mode selects lexical, semantic, hybrid, or auto (default auto).
	Mode string `json:"mode,omitempty"`
	// Fields restricts which payload fields are populated; omitted means all.
	Fields []string `json:"fields,omitempty"`
}

// searchResultJSON is one result entry in the POST /api/search response.
type searchResultJSON struct {
	ConversationID int64   `json:"conversationId"`
	MessageID      int64   `json:"messageId"`
	Title          string  `json:"title,omitempty"`
	SourcePath     string  `json:"sourcePath,omitempty"`
	Agent          string  `json:"agent,omitempty"`
	Workspace      string  `json:"workspace,omitempty"`
	Snippet        string  `json:"snippet,omitempty"`
	Content        string  `json:"content,omitempty"`
	Score          float64 `json:"score"`
	MatchType      string  `json:"matchType"`
	Degraded       string  `json:"degraded,omitempty"`
}

// searchResponse is the JSON response for POST /api/search.
type searchResponse struct {
	Results []searchResultJSON `json:"results"`
}

// exportRequest is the JSON body for POST /api/export.
type exportRequest struct {
	AgentSlugs     []string `json:"agentSlugs,omitempty"`
	WorkspacePaths []string `json:"workspacePaths,omitempty"`
	SinceUnix      *int64   `json:"sinceUnix,omitempty"`
	UntilUnix      *int64   `json:"untilUnix,omitempty"`
	PathMode       string   `json:"pathMode,omitempty"`
	Password       string   `json:"password"`
	RecoverySecret string   `json:"recoverySecret,omitempty"`
}

// exportResponse is the JSON response for POST /api/export.
type exportResponse struct {
	Dir               string `json:"dir"`
	ConversationCount int    `json:"conversationCount"`
	MessageCount      int    `json:"messageCount"`
}
