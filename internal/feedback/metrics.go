package feedback

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for feedback ingestion.
type Metrics struct {
	FeedbackTotal          *prometheus.CounterVec
	RecomputeFailures      *prometheus.CounterVec
	SourceWeight           *prometheus.GaugeVec
	ReferenceWeightUpdates prometheus.Counter
}

// NewMetrics registers the feedback metrics once per process.
//
// Metrics:
//   - troubleshootd_feedback_total{source,helpful}
//   - troubleshootd_weight_recompute_failures_total{scope}
//   - troubleshootd_source_weight{source}
//   - troubleshootd_reference_weight_updates_total
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			FeedbackTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "troubleshootd_feedback_total",
					Help: "Total number of suggestion feedback events recorded",
				},
				[]string{"source", "helpful"},
			),
			RecomputeFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "troubleshootd_weight_recompute_failures_total",
					Help: "Total number of relevance weight recomputations that failed",
				},
				[]string{"scope"}, // "source" or "reference"
			),
			SourceWeight: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "troubleshootd_source_weight",
					Help: "Current source-level relevance weight",
				},
				[]string{"source"},
			),
			ReferenceWeightUpdates: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "troubleshootd_reference_weight_updates_total",
					Help: "Total number of per-reference weight updates",
				},
			),
		}
	})
	return globalMetrics
}

func scopeLabel(coarse bool) string {
	if coarse {
		return "source"
	}
	return "reference"
}
