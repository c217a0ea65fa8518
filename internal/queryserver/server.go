// Package queryserver implements the HTTP server exposing search and
// export over the primary corpus store. It is started by the
// `cass serve` CLI command.
package queryserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rawwerks/cass-go/internal/export"
	"github.com/rawwerks/cass-go/internal/hybrid"
	"github.com/rawwerks/cass-go/internal/logging"
)

// New constructs a Server from the provided searcher and config. src is
// the primary store's connection, used only by POST /api/export; it may
// be nil if cfg.ExportDir is also empty, disabling the export endpoint.
// If cfg.Logger is nil, [logging.New] is used.
func New(search *hybrid.Searcher, src *sql.DB, cfg *Config) (*Server, error) {
	if search == nil {
		return nil, fmt.Errorf("queryserver: searcher must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}

	s := &Server{search: search, exportSrc: src, cfg: cfg, log: cfg.Logger, pingers: cfg.Pingers}
	s.metrics = newServerMetrics(promAutoRegistry())

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/export", s.handleExport)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)

	rps := cfg.RateLimit
	if rps <= 0 {
		rps = defaultRateLimit
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = defaultRateBurst
	}
	rl, stopRL := newRateLimiter(rps, burst, s.log)
	s.stopRL = stopRL

	var handler http.Handler = mux
	handler = authMiddleware(cfg.APIKey, handler)
	handler = rl.middleware(handler)
	handler = requestLogger(s.log, handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("queryserver: listen error: %w", err)
	case <-ctx.Done():
		if s.stopRL != nil {
			s.stopRL()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("queryserver: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// maxRequestBodyBytes bounds every POST body this server accepts.
const maxRequestBodyBytes = 1 << 20 // 1 MiB

func toHybridMode(raw string) hybrid.Mode {
	switch strings.ToLower(raw) {
	case string(hybrid.ModeLexical):
		return hybrid.ModeLexical
	case string(hybrid.ModeSemantic):
		return hybrid.ModeSemantic
	case string(hybrid.ModeHybrid):
		return hybrid.ModeHybrid
	default:
		return hybrid.ModeAuto
	}
}

func toFieldMask(fields []string) hybrid.FieldMask {
	var mask hybrid.FieldMask
	for _, f := range fields {
		switch strings.ToLower(f) {
		case "title":
			mask.Title = true
		case "sourcepath", "source_path":
			mask.SourcePath = true
		case "snippet":
			mask.Snippet = true
		case "content":
			mask.Content = true
		}
	}
	return mask
}

// handleSearch handles POST /api/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.searchRequestsTotal.WithLabelValues("error").Inc()
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		s.metrics.searchRequestsTotal.WithLabelValues("error").Inc()
		writeJSONError(w, "query is required", http.StatusBadRequest)
		return
	}

	filters := hybrid.Filters{Agents: req.AgentSlugs, Workspaces: req.WorkspacePaths}
	mode := toHybridMode(req.Mode)
	mask := toFieldMask(req.Fields)

	results, err := s.search.Search(r.Context(), req.Query, filters, req.Limit, req.Offset, mask, mode)
	if err != nil {
		s.metrics.searchRequestsTotal.WithLabelValues("error").Inc()
		logging.FromContext(r.Context()).Error("search failed", slog.Any("error", err))
		writeJSONError(w, "search failed", http.StatusInternalServerError)
		return
	}

	resp := searchResponse{Results: make([]searchResultJSON, len(results))}
	for i, res := range results {
		resp.Results[i] = searchResultJSON{
			ConversationID: res.ConversationID,
			MessageID:      res.MessageID,
			Title:          res.Title,
			SourcePath:     res.SourcePath,
			Agent:          res.Agent,
			Workspace:      res.Workspace,
			Snippet:        res.Snippet,
			Content:        res.Content,
			Score:          res.Score,
			MatchType:      string(res.MatchType),
			Degraded:       res.Degraded,
		}
	}

	s.metrics.searchRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.searchDurationSeconds.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.FromContext(r.Context()).Error("search encode error", slog.Any("error", err))
	}
}

// handleExport handles POST /api/export: it filters and bundles the
// corpus into a fresh encrypted archive directory under cfg.ExportDir.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.cfg.ExportDir == "" || s.exportSrc == nil {
		writeJSONError(w, "export is not configured on this server", http.StatusServiceUnavailable)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Password == "" {
		writeJSONError(w, "password is required", http.StatusBadRequest)
		return
	}

	opts := export.Options{
		AgentSlugs:     req.AgentSlugs,
		WorkspacePaths: req.WorkspacePaths,
		SinceUnix:      req.SinceUnix,
		UntilUnix:      req.UntilUnix,
	}
	if req.PathMode != "" {
		opts.PathMode = export.PathMode(req.PathMode)
	}

	destDir := filepath.Join(s.cfg.ExportDir, fmt.Sprintf("export-%d", time.Now().UnixNano()))
	result, err := s.runExport(r.Context(), destDir, opts, export.BundleOptions{
		Password:       req.Password,
		RecoverySecret: []byte(req.RecoverySecret),
	})
	if err != nil {
		s.metrics.exportRequestsTotal.WithLabelValues("error").Inc()
		logging.FromContext(r.Context()).Error("export failed", slog.Any("error", err))
		writeJSONError(w, "export failed", http.StatusInternalServerError)
		return
	}

	s.metrics.exportRequestsTotal.WithLabelValues("ok").Inc()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(exportResponse{
		Dir:               destDir,
		ConversationCount: result.ConversationCount,
		MessageCount:      result.MessageCount,
	}); err != nil {
		logging.FromContext(r.Context()).Error("export encode error", slog.Any("error", err))
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		logging.FromContext(r.Context()).Error("health encode error", slog.Any("error", err))
	}
}

func writeJSONError(w http.ResponseWriter, msg string, status int) {
	http.Error(w, `{"error":"`+msg+`"}`, status)
}
