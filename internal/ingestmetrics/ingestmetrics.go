// Package ingestmetrics registers the Prometheus metrics for the offline
// CLI pipelines — scan, index, and export — the same way
// internal/queryserver registers metrics for the HTTP server: one struct of
// promauto collectors, built once per command invocation against the
// default registerer so an operator scraping the process sees ingestion
// alongside search.
package ingestmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan holds the counters and histograms owned by `cass scan`.
type Scan struct {
	connectorErrors *prometheus.CounterVec
	filesSkipped    *prometheus.CounterVec
	bytesRead       *prometheus.CounterVec
	convsTouched    *prometheus.CounterVec
	messagesAdded   *prometheus.CounterVec
	scanDuration    *prometheus.HistogramVec
}

// NewScan registers the scan metrics against the default registerer.
func NewScan() *Scan {
	factory := promauto.With(prometheus.DefaultRegisterer)

	return &Scan{
		connectorErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cass",
			Subsystem: "scan",
			Name:      "connector_errors_total",
			Help:      "Total number of connector failures encountered during scan, partitioned by connector.",
		}, []string{"connector"}),

		filesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cass",
			Subsystem: "scan",
			Name:      "files_skipped_total",
			Help:      "Total number of session files or records a connector gave up on during scan, partitioned by connector.",
		}, []string{"connector"}),

		bytesRead: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cass",
			Subsystem: "scan",
			Name:      "bytes_read_total",
			Help:      "Total bytes of on-disk session data read during scan, partitioned by connector.",
		}, []string{"connector"}),

		convsTouched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cass",
			Subsystem: "scan",
			Name:      "conversations_touched_total",
			Help:      "Total number of conversations created or appended to, partitioned by connector.",
		}, []string{"connector"}),

		messagesAdded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cass",
			Subsystem: "scan",
			Name:      "messages_added_total",
			Help:      "Total number of messages inserted, partitioned by connector.",
		}, []string{"connector"}),

		scanDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cass",
			Subsystem: "scan",
			Name:      "connector_duration_seconds",
			Help:      "Wall-clock duration of a single connector's scan pass.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"connector"}),
	}
}

// ConnectorFailed records a connector erroring out of its scan pass entirely.
func (s *Scan) ConnectorFailed(connector string) {
	s.connectorErrors.WithLabelValues(connector).Inc()
}

// ObserveScanStats records one connector's per-scan resource accounting
//: bytes of session data read and files or records it
// could not turn into a conversation, even when the scan as a whole
// succeeded.
func (s *Scan) ObserveScanStats(connector string, bytesRead int64, filesSkipped int) {
	s.bytesRead.WithLabelValues(connector).Add(float64(bytesRead))
	s.filesSkipped.WithLabelValues(connector).Add(float64(filesSkipped))
}

// ConversationStored records one conversation being created or appended to,
// with the number of messages that append added.
func (s *Scan) ConversationStored(connector string, messagesAdded int) {
	s.convsTouched.WithLabelValues(connector).Inc()
	s.messagesAdded.WithLabelValues(connector).Add(float64(messagesAdded))
}

// ObserveDuration records how long a connector's scan pass took.
func (s *Scan) ObserveDuration(connector string, d time.Duration) {
	s.scanDuration.WithLabelValues(connector).Observe(d.Seconds())
}

// Index holds the metrics owned by `cass index`.
type Index struct {
	buildDuration *prometheus.HistogramVec
	rowsIndexed   prometheus.Counter
}

// NewIndex registers the index metrics against the default registerer.
func NewIndex() *Index {
	factory := promauto.With(prometheus.DefaultRegisterer)

	return &Index{
		buildDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cass",
			Subsystem: "index",
			Name:      "build_duration_seconds",
			Help:      "Wall-clock duration of an index build step, partitioned by step (fts, vector).",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),

		rowsIndexed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cass",
			Subsystem: "index",
			Name:      "vector_rows_indexed_total",
			Help:      "Total number of message rows written into vector index builds.",
		}),
	}
}

// ObserveBuild records how long a build step (fts or vector) took.
func (m *Index) ObserveBuild(step string, d time.Duration) {
	m.buildDuration.WithLabelValues(step).Observe(d.Seconds())
}

// AddRowsIndexed records rows written into the vector index file.
func (m *Index) AddRowsIndexed(n int) {
	m.rowsIndexed.Add(float64(n))
}

// Export holds the metrics owned by `cass export`.
type Export struct {
	requestsTotal   *prometheus.CounterVec
	duration        prometheus.Histogram
	chunkBytesTotal prometheus.Counter
}

// NewExport registers the export metrics against the default registerer.
func NewExport() *Export {
	factory := promauto.With(prometheus.DefaultRegisterer)

	return &Export{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cass",
			Subsystem: "export",
			Name:      "runs_total",
			Help:      "Total number of `cass export` runs, partitioned by outcome.",
		}, []string{"outcome"}),

		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cass",
			Subsystem: "export",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of a full `cass export` run.",
			Buckets:   prometheus.DefBuckets,
		}),

		chunkBytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cass",
			Subsystem: "export",
			Name:      "chunk_bytes_total",
			Help:      "Total encrypted payload bytes written across all export chunks.",
		}),
	}
}

// Finish records the outcome and duration of one export run.
func (m *Export) Finish(outcome string, d time.Duration) {
	m.requestsTotal.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}

// AddChunkBytes records encrypted payload bytes written to the bundle.
func (m *Export) AddChunkBytes(n int) {
	m.chunkBytesTotal.Add(float64(n))
}
