package commands

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rawwerks/cass-go/internal/connectors"
	"github.com/rawwerks/cass-go/internal/ingestmetrics"
	"github.com/rawwerks/cass-go/internal/logging"
)

// NewScanCmd constructs the `cass scan` command, which runs every
// registered connector against its conventional on-disk location,
// normalizes whatever it finds, and persists the result via the single
// writer. Incremental by default: each connector's own
// last_scan_ts watermark bounds the scan to new/changed files.
func NewScanCmd() *cobra.Command {
	var dbPath string
	var root string
	var full bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan coding-agent session files on disk into the corpus",
		Long: `Scan every registered connector's conventional session directory
(Claude Code, Codex, PI-Agent, OpenCode, Amp) and persist normalized
conversations into the corpus database.

Every connector resumes from its last scan watermark, so only new or
changed files since the previous run are re-parsed. Pass --full to ignore
the watermark and re-parse everything; messages already stored in a
conversation are skipped on insert, so a full rescan repairs a corpus
without duplicating it.

The --root flag overrides every connector's default data directory with a
single shared root, which is mainly useful for tests and for reindexing a
single exported/rsynced directory tree.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			db, err := openStore(dbPath)
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			defer db.Close()

			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("scan: could not determine home directory: %w", err)
			}
			roots := defaultScanRoots(home)

			registry := buildRegistry()
			startedAt := time.Now().UTC()
			metrics := ingestmetrics.NewScan()

			var totalConvs, totalMsgs int
			for _, c := range registry.All() {
				connStarted := time.Now()

				connRoot := roots[c.Slug()]
				if root != "" {
					connRoot = root
				}

				var since *time.Time
				if !full {
					wm, err := db.ScanWatermark(c.Slug())
					if err != nil {
						log.Warn("scan: failed to read watermark", "connector", c.Slug(), "error", err)
					} else if !wm.IsZero() {
						since = &wm
					}
				}

				convs, stats, err := c.Scan(connectors.ScanContext{
					DataRoot: connRoot,
					SinceTS:  since,
					Logger:   log,
				})
				metrics.ObserveScanStats(c.Slug(), stats.BytesRead, stats.FilesSkipped)
				if err != nil {
					log.Warn("scan: connector failed, continuing with the rest", "connector", c.Slug(), "error", err)
					metrics.ConnectorFailed(c.Slug())
					continue
				}

				for _, conv := range convs {
					res, err := db.UpsertConversation(conv)
					if err != nil {
						log.Warn("scan: failed to store conversation", "connector", c.Slug(), "source_path", conv.SourcePath, "error", err)
						continue
					}
					totalConvs++
					totalMsgs += res.MessagesAdded
					metrics.ConversationStored(c.Slug(), res.MessagesAdded)
				}

				if err := db.SetScanWatermark(c.Slug(), startedAt); err != nil {
					log.Warn("scan: failed to advance watermark", "connector", c.Slug(), "error", err)
				}
				metrics.ObserveDuration(c.Slug(), time.Since(connStarted))

				log.Info("scan: connector complete",
					slog.String("connector", c.Slug()),
					slog.String("root", connRoot),
					slog.Int("conversations", len(convs)),
					slog.Int64("bytes_read", stats.BytesRead),
					slog.Int("files_skipped", stats.FilesSkipped),
				)
			}

			fmt.Printf("scan complete: %d conversations touched, %d messages added\n", totalConvs, totalMsgs)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Corpus database path (default: ~/.cass/corpus.db)")
	cmd.Flags().StringVar(&root, "root", "", "Override every connector's default data directory with one shared root")
	cmd.Flags().BoolVar(&full, "full", false, "Ignore the last scan watermark and re-parse every file; already-stored messages are skipped on insert")

	return cmd
}
