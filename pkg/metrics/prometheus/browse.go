// Package prometheus implements metrics.BrowseMetrics with Prometheus collectors.
package prometheus

import (
	"time"

	"github.com/marmos91/dittobrowse/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type browseMetrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	levelsMaterialized prometheus.Counter
	levelsReused       prometheus.Counter
	levelsTruncated    prometheus.Counter
	levelChildren      prometheus.Histogram
	activeSessions     prometheus.Gauge
	sessionsClosed     *prometheus.CounterVec
}

// NewBrowseMetrics creates Prometheus-backed metrics on the global registry.
//
// Returns the no-op implementation if metrics are not enabled (InitRegistry not called).
func NewBrowseMetrics() metrics.BrowseMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopBrowseMetrics()
	}
	return NewBrowseMetricsWith(metrics.GetRegistry())
}

// NewBrowseMetricsWith registers the collectors on reg.
func NewBrowseMetricsWith(reg prometheus.Registerer) metrics.BrowseMetrics {
	return &browseMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittobrowse_requests_total",
				Help: "Total number of browse requests by operation, status and error code",
			},
			[]string{"operation", "status", "error_code"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittobrowse_request_duration_milliseconds",
				Help: "Duration of browse requests in milliseconds",
				Buckets: []float64{
					1,     // 1ms
					10,    // 10ms
					100,   // 100ms
					1000,  // 1s
					10000, // 10s
				},
			},
			[]string{"operation"},
		),
		levelsMaterialized: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittobrowse_levels_materialized_total",
				Help: "Total number of levels whose children were enumerated",
			},
		),
		levelsReused: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittobrowse_levels_reused_total",
				Help: "Total number of requests served from a cached listing",
			},
		),
		levelsTruncated: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittobrowse_levels_truncated_total",
				Help: "Total number of listings truncated at the child limit",
			},
		),
		levelChildren: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dittobrowse_level_children",
				Help:    "Number of children materialized per level",
				Buckets: []float64{0, 10, 100, 1000, 10000},
			},
		),
		activeSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittobrowse_active_sessions",
				Help: "Current number of browsing sessions",
			},
		),
		sessionsClosed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittobrowse_sessions_closed_total",
				Help: "Total number of closed sessions by reason",
			},
			[]string{"reason"},
		),
	}
}

func (m *browseMetrics) LevelMaterialized(path string, count int, partial bool) {
	m.levelsMaterialized.Inc()
	m.levelChildren.Observe(float64(count))
	if partial {
		m.levelsTruncated.Inc()
	}
}

func (m *browseMetrics) LevelReused(path string) {
	m.levelsReused.Inc()
}

func (m *browseMetrics) RecordRequest(operation string, duration time.Duration, err error) {
	status := "success"
	code := metrics.ErrorLabel(err)
	if err != nil {
		status = "error"
	}

	m.requestsTotal.WithLabelValues(operation, status, code).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(duration.Seconds() * 1000)
}

func (m *browseMetrics) SetActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

func (m *browseMetrics) RecordSessionClosed(reason string) {
	m.sessionsClosed.WithLabelValues(reason).Inc()
}
