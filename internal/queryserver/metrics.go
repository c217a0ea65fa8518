// Package queryserver — metrics.go registers all Prometheus metrics for the
// HTTP server.
package queryserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// searchRequestsTotal counts completed /api/search requests, partitioned
	// by outcome: "ok" or "error".
	searchRequestsTotal *prometheus.CounterVec

	// searchDurationSeconds records the wall-clock duration of each
	// /api/search request, partitioned by the resolved search mode.
	searchDurationSeconds *prometheus.HistogramVec

	// exportRequestsTotal counts completed /api/export requests, partitioned
	// by outcome: "ok" or "error".
	exportRequestsTotal *prometheus.CounterVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		searchRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cass",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total number of /api/search requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		searchDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cass",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/search requests, partitioned by resolved mode.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),

		exportRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cass",
			Subsystem: "export",
			Name:      "requests_total",
			Help:      "Total number of /api/export requests completed, partitioned by outcome.",
		}, []string{"outcome"}),
	}
}

// promAutoRegistry returns the registry new servers register their metrics
// against. It is the global default registerer: operators scrape it by
// mounting promhttp.Handler() alongside this server, same as any other
// process exporting process/Go runtime metrics.
func promAutoRegistry() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}
