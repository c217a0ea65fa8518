package queryserver

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewServerMetrics_RegistersWithoutPanicking(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := newServerMetrics(reg)

	metrics.searchRequestsTotal.WithLabelValues("ok").Inc()
	metrics.searchDurationSeconds.WithLabelValues("hybrid").Observe(0.01)
	metrics.exportRequestsTotal.WithLabelValues("ok").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected at least one registered metric family")
	}
}
