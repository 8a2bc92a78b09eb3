package metrics_collectors

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const namespace = "signal_agent_host"

// MetricsRegistry exposes host measurements as Prometheus gauges. Every
// scrape reads each collector once; a failed read is logged and omitted.
type MetricsRegistry struct {
	collectors []MetricCollector
	descs      map[string]*prometheus.Desc
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewMetricsRegistry creates an empty registry. timeout bounds a single scrape.
func NewMetricsRegistry(timeout time.Duration, logger zerolog.Logger) *MetricsRegistry {
	return &MetricsRegistry{
		descs:   make(map[string]*prometheus.Desc),
		timeout: timeout,
		logger:  logger,
	}
}

// NewHostRegistry registers the CPU, memory and disk collectors.
func NewHostRegistry(diskPath string, timeout time.Duration, logger zerolog.Logger) *MetricsRegistry {
	r := NewMetricsRegistry(timeout, logger)
	r.Register(&CPUMetricCollector{})
	r.Register(&MemoryMetricCollector{})
	r.Register(&DiskMetricCollector{Path: diskPath})
	return r
}

// Register adds a collector. A collector with an already registered name is
// ignored.
func (r *MetricsRegistry) Register(collector MetricCollector) {
	if _, exists := r.descs[collector.Name()]; exists {
		r.logger.Warn().Str("metric", collector.Name()).Msg("Host metric is already registered")
		return
	}
	r.descs[collector.Name()] = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", collector.Name()),
		collector.Description(),
		nil, nil,
	)
	r.collectors = append(r.collectors, collector)
}

// Describe implements prometheus.Collector.
func (r *MetricsRegistry) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range r.collectors {
		ch <- r.descs[c.Name()]
	}
}

// Collect implements prometheus.Collector.
func (r *MetricsRegistry) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	for _, c := range r.collectors {
		value, err := c.Collect(ctx)
		if err != nil {
			r.logger.Warn().Err(err).Str("metric", c.Name()).Msg("Failed to collect host metric")
			continue
		}
		ch <- prometheus.MustNewConstMetric(r.descs[c.Name()], prometheus.GaugeValue, value)
	}
}
