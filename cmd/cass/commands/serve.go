package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rawwerks/cass-go/internal/queryserver"
)

// NewServeCmd constructs the `cass serve` command, which starts the HTTP
// server exposing search and export over the primary corpus store.
func NewServeCmd() *cobra.Command {
	var dbPath string
	var indexPath string
	var host string
	var port int
	var exportDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the cass search/export HTTP server",
		Long: `Start the cass HTTP server on localhost. Exposes POST /api/search
over the hybrid search path, POST /api/export over the encrypted export
pipeline, and GET /api/health / GET /api/ready for liveness and
readiness probing.

Set CASS_API_KEY to require a Bearer token on every /api/* route;
leaving it unset runs the server in development (unauthenticated) mode.

Examples:
  cass serve
  cass serve --port 9090
  CASS_API_KEY=secret cass serve --export-dir ~/.cass/exports`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, err := openStore(dbPath)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer db.Close()

			idxPath := indexPath
			if idxPath == "" {
				idxPath = defaultIndexPath(dbPathOrDefault(dbPath))
			}

			searcher, shutdown, err := buildSearcher(ctx, db, idxPath)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer shutdown(ctx)

			pingers := buildReadinessPingers()

			dir := exportDir
			if dir == "" {
				dir = os.Getenv("CASS_EXPORT_DIR")
			}

			srv, err := queryserver.New(searcher, db.Conn(), &queryserver.Config{
				Host:      host,
				Port:      port,
				APIKey:    os.Getenv("CASS_API_KEY"),
				ExportDir: dir,
				Pingers:   pingers,
			})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Corpus database path (default: ~/.cass/corpus.db)")
	cmd.Flags().StringVar(&indexPath, "index", "", "Vector index path (default: alongside --db, same name with .cvvi)")
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")
	cmd.Flags().StringVar(&exportDir, "export-dir", "", "Directory POST /api/export writes completed archives under")

	return cmd
}

// buildReadinessPingers registers an HTTP reachability probe for each
// backend that is actually configured.
func buildReadinessPingers() []queryserver.Pinger {
	var pingers []queryserver.Pinger

	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		pingers = append(pingers, queryserver.NewHTTPEndpointPinger("ollama", host))
	}
	if endpoint := os.Getenv("CASS_RERANKER_ENDPOINT"); endpoint != "" {
		pingers = append(pingers, queryserver.NewHTTPEndpointPinger("reranker", endpoint))
	}

	return pingers
}
