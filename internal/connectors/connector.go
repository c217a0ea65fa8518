// Package connectors normalizes per-agent on-disk session formats into
// recordmodel.Conversation values. Each connector is detect-scan-slug only;
// nothing about storage or indexing leaks into this package.
package connectors

import (
	"log/slog"
	"time"

	"github.com/rawwerks/cass-go/internal/recordmodel"
)

// ScanContext carries the inputs every connector's Scan needs. ScanRoots, if
// non-empty, restricts scanning to exactly those files (used by tests and by
// a future "reindex this one file" command) instead of a full directory walk.
type ScanContext struct {
	DataRoot  string
	ScanRoots []string
	SinceTS   *time.Time
	Logger    *slog.Logger
}

func (c ScanContext) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// DetectResult is the outcome of a cheap, side-effect-free presence check.
type DetectResult struct {
	Detected bool
	Evidence []string
}

// ScanStats reports the resource accounting for one Scan pass: how many
// bytes of session data the connector actually read, and how many
// candidate files or records it gave up on. It is orthogonal to the
// error return — a connector reports partial stats even when it ultimately
// returns a top-level error, and a nil error can still carry FilesSkipped>0
// for individually unreadable files that didn't abort the whole scan.
type ScanStats struct {
	BytesRead    int64
	FilesSkipped int
}

// Add folds o into s, for combining per-connector stats into a registry total.
func (s *ScanStats) Add(o ScanStats) {
	s.BytesRead += o.BytesRead
	s.FilesSkipped += o.FilesSkipped
}

// Connector normalizes one coding agent's session file format.
type Connector interface {
	// Slug is the stable identifier persisted as Agent.Slug.
	Slug() string
	// Detect reports whether this connector's session files exist under
	// root, without reading their contents.
	Detect(root string) (DetectResult, error)
	// Scan parses every session file under ctx.DataRoot (or ctx.ScanRoots)
	// into normalized conversations, applying ctx.SinceTS filtering. The
	// returned ScanStats accounts for bytes read and files skipped even
	// when the error return is nil.
	Scan(ctx ScanContext) ([]*recordmodel.Conversation, ScanStats, error)
}

// Registry is the set of connectors a scan runs against. Order is
// insignificant: a failing connector must never block the others.
type Registry struct {
	connectors []Connector
}

// NewRegistry builds a registry from the given connectors.
func NewRegistry(cs ...Connector) *Registry {
	return &Registry{connectors: cs}
}

// All returns the registered connectors in registration order.
func (r *Registry) All() []Connector {
	return r.connectors
}

// ScanAll runs every connector's Scan and returns the combined conversation
// list plus the summed ScanStats across every connector, including the ones
// that failed outright. A connector that returns an error is logged and
// skipped; its failure never prevents the others from contributing results.
func (r *Registry) ScanAll(ctx ScanContext) ([]*recordmodel.Conversation, ScanStats) {
	var all []*recordmodel.Conversation
	var total ScanStats
	log := ctx.logger()
	for _, c := range r.connectors {
		convs, stats, err := c.Scan(ctx)
		total.Add(stats)
		if err != nil {
			log.Warn("connector scan failed", "connector", c.Slug(), "error", err)
			continue
		}
		all = append(all, convs...)
	}
	return all, total
}
