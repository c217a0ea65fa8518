package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rawwerks/cass-go/internal/connectors"
	"github.com/rawwerks/cass-go/internal/connectors/cacheblob"
	"github.com/rawwerks/cass-go/internal/connectors/claudecode"
	"github.com/rawwerks/cass-go/internal/connectors/envelope"
	"github.com/rawwerks/cass-go/internal/connectors/opencodedb"
	"github.com/rawwerks/cass-go/internal/connectors/sessionheader"
	"github.com/rawwerks/cass-go/internal/embedding"
	"github.com/rawwerks/cass-go/internal/hybrid"
	"github.com/rawwerks/cass-go/internal/otelspan"
	"github.com/rawwerks/cass-go/internal/reranker"
	"github.com/rawwerks/cass-go/internal/storage"
	"github.com/rawwerks/cass-go/internal/vectorindex"
)

// defaultScanRoots maps each connector's stable slug to the directory its
// agent is conventionally found under. A missing
// directory is not an error — Detect/Scan simply find nothing under it.
func defaultScanRoots(home string) map[string]string {
	return map[string]string{
		"claude-code": filepath.Join(home, ".claude", "projects"),
		"codex":       filepath.Join(home, ".codex", "sessions"),
		"pi-agent":    filepath.Join(home, ".pi-agent", "sessions"),
		"opencode":    filepath.Join(home, ".local", "share", "opencode", "storage"),
		"amp":         filepath.Join(home, ".amp", "cache"),
	}
}

// buildRegistry constructs the full connector registry, in the same
// fixed order every time so scan summaries are reproducible.
func buildRegistry() *connectors.Registry {
	return connectors.NewRegistry(
		claudecode.New(),
		envelope.New(),
		sessionheader.New(),
		opencodedb.New(),
		cacheblob.New(),
	)
}

// openStore opens the primary corpus database at path, or the configured
// default (~/.cass/corpus.db) when path is empty.
func openStore(path string) (*storage.DB, error) {
	if path == "" {
		var err error
		path, err = storage.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	db, err := storage.Open(path)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// defaultIndexPath returns the sibling .cvvi path for a corpus database,
// e.g. ~/.cass/corpus.db -> ~/.cass/corpus.cvvi.
func defaultIndexPath(dbPath string) string {
	ext := filepath.Ext(dbPath)
	return dbPath[:len(dbPath)-len(ext)] + ".cvvi"
}

// buildRerankerFromEnv constructs the optional cross-encoder reranker
// from CASS_RERANKER_* environment variables, degrading to the
// none backend on any configuration problem rather than failing commands
// that do not strictly need it.
func buildRerankerFromEnv() reranker.Reranker {
	backend := os.Getenv("CASS_RERANKER_BACKEND")
	if backend == "" {
		backend = string(reranker.BackendNone)
	}
	cfg := reranker.Config{
		Backend: reranker.Backend(backend),
		HTTP: reranker.HTTPConfig{
			Endpoint: os.Getenv("CASS_RERANKER_ENDPOINT"),
			Model:    os.Getenv("CASS_RERANKER_MODEL"),
		},
	}
	rr, err := reranker.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: reranker config invalid (%v), disabling rerank stage\n", err)
		rr, _ = reranker.New(reranker.Config{Backend: reranker.BackendNone})
	}
	return rr
}

// qualityEmbedderForIndexing resolves which embedder `cass index` should
// build the vector file with: the quality tier if CASS_EMBEDDING_PROVIDER
// is configured, otherwise the always-available fast tier.
func qualityEmbedderForIndexing() embedding.Embedder {
	if emb, ok := embedding.NewQualityEmbedderFromEnv(); ok {
		return emb
	}
	return embedding.NewFastEmbedder()
}

// buildSearcher wires up a full hybrid.Searcher against db: the always-on
// fast embedder, the optional quality tier, the vector index at
// indexPath (nil if it cannot be opened — the semantic path then degrades
// to lexical-only), and the configured reranker.
// Returns a no-op shutdown func that flushes tracing if it was enabled.
func buildSearcher(ctx context.Context, db *storage.DB, indexPath string) (*hybrid.Searcher, func(context.Context) error, error) {
	telCfg, err := otelspan.ConfigFromEnv(cassServiceVersion)
	if err != nil {
		return nil, nil, fmt.Errorf("search: %w", err)
	}
	tel, err := otelspan.New(ctx, telCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("search: %w", err)
	}

	fast := embedding.NewFastEmbedder()
	quality, _ := embedding.NewQualityEmbedderFromEnv()

	var idx *vectorindex.Index
	if indexPath != "" {
		if _, statErr := os.Stat(indexPath); statErr == nil {
			opts := vectorindex.LoadOptions{PreconvertF16: os.Getenv("CASS_INDEX_PRECONVERT") == "1"}
			idx, err = vectorindex.LoadWithOptions(indexPath, opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load vector index %s (%v), semantic search disabled\n", indexPath, err)
				idx = nil
			}
		}
	}

	rr := buildRerankerFromEnv()

	searcher := hybrid.New(db.Conn(), fast, quality, idx, rr, hybrid.Config{}, tel)
	return searcher, tel.Shutdown, nil
}

// cassServiceVersion is reported to the tracing backend as the OTel
// resource's service.version attribute.
const cassServiceVersion = "0.1.0"
