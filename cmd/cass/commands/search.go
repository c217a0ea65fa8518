package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rawwerks/cass-go/internal/hybrid"
	"github.com/rawwerks/cass-go/internal/storage"
)

// NewSearchCmd constructs the `cass search` command, a one-shot CLI
// wrapper around internal/hybrid.Searcher.Search for use outside
// the terminal UI and HTTP server.
func NewSearchCmd() *cobra.Command {
	var dbPath string
	var indexPath string
	var mode string
	var limit int
	var offset int
	var agents []string
	var workspaces []string
	var roles []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed conversation corpus",
		Args:  cobra.ExactArgs(1),
		Long: `Run a query through the lexical, semantic, or hybrid search path
 and print the resulting hits. Mode defaults to "auto", which runs
the fused hybrid path and falls back to lexical-only when no embedder
or vector index is configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(dbPath)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer db.Close()

			idxPath := indexPath
			if idxPath == "" {
				idxPath = defaultIndexPath(dbPathOrDefault(dbPath))
			}

			ctx := cmd.Context()
			searcher, shutdown, err := buildSearcher(ctx, db, idxPath)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer shutdown(ctx)

			filters := hybrid.Filters{Agents: agents, Workspaces: workspaces, Roles: roles}
			results, err := searcher.Search(ctx, args[0], filters, limit, offset, hybrid.FieldMask{}, hybrid.Mode(mode))
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			for _, r := range results {
				fmt.Printf("[%.4f] %s (%s/%s) %s\n  %s\n", r.Score, r.Title, r.Agent, r.Workspace, r.SourcePath, r.Snippet)
				if r.Degraded != "" {
					fmt.Printf("  (degraded: %s)\n", r.Degraded)
				}
			}
			if len(results) == 0 {
				fmt.Println("no results")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Corpus database path (default: ~/.cass/corpus.db)")
	cmd.Flags().StringVar(&indexPath, "index", "", "Vector index path (default: alongside --db, same name with .cvvi)")
	cmd.Flags().StringVar(&mode, "mode", string(hybrid.ModeAuto), "Search mode: lexical, semantic, hybrid, auto")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum results to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Result offset for pagination")
	cmd.Flags().StringSliceVar(&agents, "agent", nil, "Restrict to these agent slugs (repeatable)")
	cmd.Flags().StringSliceVar(&workspaces, "workspace", nil, "Restrict to these workspace paths (repeatable)")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "Restrict to these message roles (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}

// dbPathOrDefault resolves the effective db path without opening it, for
// deriving the default sibling index path before the store is open.
func dbPathOrDefault(explicit string) string {
	if explicit != "" {
		return explicit
	}
	p, err := storage.DefaultDBPath()
	if err != nil {
		return ""
	}
	return p
}
