package prometheus

import "github.com/prometheus/client_golang/prometheus"

var (
	registry = prometheus.NewRegistry()
	metrics  = NewMetrics(registry)
)

func GetRegistry() *prometheus.Registry {
	return registry
}

// GetMetrics returns the execution metrics registered on the shared registry.
func GetMetrics() *Metrics {
	return metrics
}
