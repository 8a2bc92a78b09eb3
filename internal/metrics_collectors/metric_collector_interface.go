package metrics_collectors

import "context"

// MetricCollector reads one host measurement.
type MetricCollector interface {
	Name() string                                 // Metric name suffix (e.g. "cpu_used_percent")
	Collect(ctx context.Context) (float64, error) // Current value
	Description() string                          // Help text
}
