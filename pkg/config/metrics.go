package config

import (
	"github.com/marmos91/dittobrowse/pkg/metrics"
	promMetrics "github.com/marmos91/dittobrowse/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// BrowseMetrics is the collector for the browsing service (never nil, noop if disabled)
	BrowseMetrics metrics.BrowseMetrics
}

// InitializeMetrics creates the metrics components based on configuration.
//
// If metrics are enabled the global Prometheus registry is initialized and
// a metrics HTTP server is created; otherwise no-op implementations are
// returned.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			Server:        nil,
			BrowseMetrics: metrics.NewNoopBrowseMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Server.Metrics.Port,
	})

	return &MetricsResult{
		Server:        server,
		BrowseMetrics: promMetrics.NewBrowseMetrics(),
	}
}
