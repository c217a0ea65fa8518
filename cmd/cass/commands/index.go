package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rawwerks/cass-go/internal/hybrid"
	"github.com/rawwerks/cass-go/internal/ingestmetrics"
	"github.com/rawwerks/cass-go/internal/storage"
)

// NewIndexCmd constructs the `cass index` command, which (re)builds the
// derived indexes the search paths depend on: the two FTS mirrors
// and the memory-mapped vector index. Conversation insertion keeps
// the FTS mirrors current incrementally, so --rebuild-fts is an explicit
// escape hatch rather than something a normal scan needs.
func NewIndexCmd() *cobra.Command {
	var dbPath string
	var indexPath string
	var rebuildFTS bool
	var revision uint64

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or refresh the full-text and vector indexes",
		Long: `Build the memory-mapped vector index (.cvvi) from every message
currently in the corpus, embedding with the configured quality-tier
embedder (CASS_EMBEDDING_PROVIDER) or the always-available fast tier if
none is configured.

Pass --rebuild-fts to additionally repopulate both full-text mirrors from
scratch — normally unnecessary, since inserts keep them in sync
incrementally; use this after a manual data edit or a tokenizer change.

Changing the embedder or passing a new --revision forces a full vector
index rebuild; the old file is replaced only once
the new one has been written in full.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openStore(dbPath)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			defer db.Close()

			metrics := ingestmetrics.NewIndex()

			if rebuildFTS {
				started := time.Now()
				if err := db.RebuildFTS(); err != nil {
					return fmt.Errorf("index: %w", err)
				}
				metrics.ObserveBuild("fts", time.Since(started))
				fmt.Println("rebuilt FTS mirrors")
			}

			path := indexPath
			if path == "" {
				dbp := dbPath
				if dbp == "" {
					dbp, err = storage.DefaultDBPath()
					if err != nil {
						return fmt.Errorf("index: %w", err)
					}
				}
				path = defaultIndexPath(dbp)
			}

			emb := qualityEmbedderForIndexing()

			var rowCount int
			if err := db.Conn().QueryRow(`SELECT count(*) FROM messages`).Scan(&rowCount); err != nil {
				return fmt.Errorf("index: count messages: %w", err)
			}

			ctx := cmd.Context()
			started := time.Now()
			if err := hybrid.BuildVectorIndex(ctx, db.Conn(), path, emb, revision); err != nil {
				return fmt.Errorf("index: %w", err)
			}
			metrics.ObserveBuild("vector", time.Since(started))
			metrics.AddRowsIndexed(rowCount)

			fmt.Printf("vector index built at %s (embedder=%s, dimension=%d)\n", path, emb.ID(), emb.Dimension())
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Corpus database path (default: ~/.cass/corpus.db)")
	cmd.Flags().StringVar(&indexPath, "index", "", "Vector index output path (default: alongside --db, same name with .cvvi)")
	cmd.Flags().BoolVar(&rebuildFTS, "rebuild-fts", false, "Repopulate both FTS mirrors from scratch before building the vector index")
	cmd.Flags().Uint64Var(&revision, "revision", 1, "Revision tag stamped into the vector index header")

	return cmd
}
