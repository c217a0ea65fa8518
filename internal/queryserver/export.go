package queryserver

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/rawwerks/cass-go/internal/export"
)

// runExport copies the primary store into a fresh derived database under
// destDir and bundles it into an encrypted archive. The derived
// database file is removed once bundling completes; only the encrypted
// site/private tree is left behind.
func (s *Server) runExport(ctx context.Context, destDir string, opts export.Options, bundleOpts export.BundleOptions) (export.Result, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return export.Result{}, fmt.Errorf("queryserver: create export dir: %w", err)
	}

	derivedPath := filepath.Join(destDir, "derived.db")
	dst, err := sql.Open("sqlite", derivedPath)
	if err != nil {
		return export.Result{}, fmt.Errorf("queryserver: open derived db: %w", err)
	}

	result, err := export.CopyFiltered(ctx, s.exportSrc, dst, opts)
	closeErr := dst.Close()
	if err != nil {
		return export.Result{}, err
	}
	if closeErr != nil {
		return export.Result{}, fmt.Errorf("queryserver: close derived db: %w", closeErr)
	}

	if err := export.Bundle(ctx, derivedPath, destDir, bundleOpts); err != nil {
		return export.Result{}, err
	}
	if err := os.Remove(derivedPath); err != nil {
		s.log.Warn("queryserver: leftover derived db not removed", "path", derivedPath, "error", err)
	}

	return result, nil
}
