package suggestion

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for suggestion retrieval.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	TierDuration      *prometheus.HistogramVec
	TierFailuresTotal *prometheus.CounterVec
	TierTimeoutsTotal *prometheus.CounterVec
	SuggestionsServed *prometheus.CounterVec
}

// NewMetrics registers the suggestion metrics once per process.
//
// Metrics:
//   - troubleshootd_suggestion_requests_total{outcome} - "ok", "partial", "not_found", "error"
//   - troubleshootd_tier_duration_seconds{tier}
//   - troubleshootd_tier_failures_total{tier}
//   - troubleshootd_tier_timeouts_total{tier}
//   - troubleshootd_suggestions_served_total{source}
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "troubleshootd_suggestion_requests_total",
					Help: "Total number of suggestion requests by outcome",
				},
				[]string{"outcome"},
			),
			TierDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "troubleshootd_tier_duration_seconds",
					Help:    "Duration of retrieval tiers in seconds",
					Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
				},
				[]string{"tier"},
			),
			TierFailuresTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "troubleshootd_tier_failures_total",
					Help: "Total number of retrieval tier failures",
				},
				[]string{"tier"},
			),
			TierTimeoutsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "troubleshootd_tier_timeouts_total",
					Help: "Total number of retrieval tier timeouts",
				},
				[]string{"tier"},
			),
			SuggestionsServed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "troubleshootd_suggestions_served_total",
					Help: "Total number of suggestions returned by source",
				},
				[]string{"source"},
			),
		}
	})
	return globalMetrics
}

// RecordTier records the duration and outcome of one tier run.
func (m *Metrics) RecordTier(tier string, seconds float64, failed, timedOut bool) {
	if m == nil {
		return
	}
	m.TierDuration.WithLabelValues(tier).Observe(seconds)
	if timedOut {
		m.TierTimeoutsTotal.WithLabelValues(tier).Inc()
	}
	if failed {
		m.TierFailuresTotal.WithLabelValues(tier).Inc()
	}
}

// RecordRequest records a finished request.
func (m *Metrics) RecordRequest(outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordServed counts suggestions returned for source.
func (m *Metrics) RecordServed(source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.SuggestionsServed.WithLabelValues(source).Add(float64(n))
}
