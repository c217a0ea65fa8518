package commands

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	_ "modernc.org/sqlite" // registers the "sqlite" driver for the derived db

	"github.com/rawwerks/cass-go/internal/export"
	"github.com/rawwerks/cass-go/internal/ingestmetrics"
)

// NewExportCmd constructs the `cass export` command, which drives the
// full export pipeline: a filtered, path-rewritten projection of the
// primary corpus into a fresh derived database, then an encrypted,
// chunked, verifiable bundle built from it.
func NewExportCmd() *cobra.Command {
	var dbPath string
	var destDir string
	var agents []string
	var workspaces []string
	var sinceUnix int64
	var untilUnix int64
	var pathMode string
	var chunkSize int
	var password string
	var recoverySecret string

	cmd := &cobra.Command{
		Use:   "export <dest-dir>",
		Short: "Export an encrypted, offline-viewable archive of the corpus",
		Args:  cobra.ExactArgs(1),
		Long: `Project a filtered slice of the corpus into a fresh derived database,
then encrypt and bundle it into a {site/, private/} directory tree under
dest-dir. site/ is self-contained and safe to publish; private/
holds recovery material and must never be shipped alongside it.

A password is always required. Pass --recovery-secret to additionally
provision a recovery key slot — without it, losing the password makes
the archive unrecoverable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			destDir = args[0]
			if password == "" {
				return fmt.Errorf("export: --password is required")
			}

			metrics := ingestmetrics.NewExport()
			started := time.Now()
			outcome := "error"
			defer func() { metrics.Finish(outcome, time.Since(started)) }()

			db, err := openStore(dbPath)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			defer db.Close()

			tmpDir, err := os.MkdirTemp("", "cass-export-*")
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			defer os.RemoveAll(tmpDir)

			derivedPath := filepath.Join(tmpDir, "derived.db")
			dst, err := sql.Open("sqlite", derivedPath)
			if err != nil {
				return fmt.Errorf("export: open derived db: %w", err)
			}

			opts := export.Options{
				AgentSlugs:     agents,
				WorkspacePaths: workspaces,
				PathMode:       export.PathMode(pathMode),
			}
			if sinceUnix != 0 {
				opts.SinceUnix = &sinceUnix
			}
			if untilUnix != 0 {
				opts.UntilUnix = &untilUnix
			}

			ctx := cmd.Context()
			result, err := export.CopyFiltered(ctx, db.Conn(), dst, opts)
			if err != nil {
				_ = dst.Close()
				return fmt.Errorf("export: %w", err)
			}
			if err := dst.Close(); err != nil {
				return fmt.Errorf("export: close derived db: %w", err)
			}

			bundleOpts := export.BundleOptions{ChunkSize: chunkSize, Password: password}
			if recoverySecret != "" {
				bundleOpts.RecoverySecret = []byte(recoverySecret)
			}
			if err := export.Bundle(ctx, derivedPath, destDir, bundleOpts); err != nil {
				return fmt.Errorf("export: %w", err)
			}

			if n, err := dirSize(filepath.Join(destDir, "site", "payload")); err == nil {
				metrics.AddChunkBytes(n)
			}

			outcome = "ok"
			fmt.Printf("exported %d conversations / %d messages to %s\n", result.ConversationCount, result.MessageCount, destDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Corpus database path (default: ~/.cass/corpus.db)")
	cmd.Flags().StringSliceVar(&agents, "agent", nil, "Restrict export to these agent slugs (repeatable)")
	cmd.Flags().StringSliceVar(&workspaces, "workspace", nil, "Restrict export to these workspace paths (repeatable)")
	cmd.Flags().Int64Var(&sinceUnix, "since", 0, "Only conversations started after this Unix timestamp (exclusive)")
	cmd.Flags().Int64Var(&untilUnix, "until", 0, "Only conversations started at or before this Unix timestamp (inclusive)")
	cmd.Flags().StringVar(&pathMode, "path-mode", string(export.PathFull), "Source path rewrite mode: relative, basename, full, hash-prefix-16")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", export.DefaultChunkSize, "Encrypted payload chunk size in bytes")
	cmd.Flags().StringVar(&password, "password", "", "Archive password (required)")
	cmd.Flags().StringVar(&recoverySecret, "recovery-secret", "", "Optional recovery secret, provisions a second key slot")

	return cmd
}

// dirSize sums the size of every regular file under root, used to report
// total encrypted chunk bytes written by a single export run.
func dirSize(root string) (int, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return int(total), err
}
