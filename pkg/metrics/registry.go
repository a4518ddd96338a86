// Package metrics defines the observability contract of the browsing service.
//
// Metrics are optional: when the registry is not initialized, constructors
// in the prometheus subpackage return the no-op implementation.
//
// Usage:
//
//	metrics.InitRegistry()
//	m := prometheus.NewBrowseMetrics()
//	svc := browser.New(reg, root, cfg, m)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is written once by InitRegistry
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// Call it before creating metrics instances; later calls are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global Prometheus registry.
//
// Returns nil if InitRegistry() has not been called.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry() has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
