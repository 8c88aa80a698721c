package metrics_collectors

import (
	"context"

	"github.com/rs/zerolog"
)

// MetricCollector collects one host metric.
type MetricCollector interface {
	Name() string                             // Name of the metric (e.g., "cpu_percent", "goroutines")
	Collect(ctx context.Context) (any, error) // Collect the metric data
}

// MetricsRegistry holds the collectors reported with every health check.
type MetricsRegistry struct {
	collectors []MetricCollector
	logger     zerolog.Logger
}

// NewMetricsRegistry creates a new MetricsRegistry instance.
func NewMetricsRegistry(logger zerolog.Logger) *MetricsRegistry {
	return &MetricsRegistry{logger: logger.With().Str("component", "host_metrics").Logger()}
}

// NewHostMetricsRegistry returns a registry with the collectors that matter
// for the monitor host.
func NewHostMetricsRegistry(ffmpegPath string, logger zerolog.Logger) *MetricsRegistry {
	r := NewMetricsRegistry(logger)
	r.Register(&CPUMetricCollector{})
	r.Register(&MemoryMetricCollector{})
	r.Register(&GoroutineMetricCollector{})
	r.Register(NewProcessMetricCollector(ffmpegPath))
	return r
}

// Register adds a collector. Collectors with a duplicate name are ignored.
func (r *MetricsRegistry) Register(collector MetricCollector) {
	for _, c := range r.collectors {
		if c.Name() == collector.Name() {
			r.logger.Warn().Str("metric", collector.Name()).Msg("Metric collector already registered")
			return
		}
	}
	r.collectors = append(r.collectors, collector)
}

// Collect runs every collector. Failing collectors are logged and left out.
func (r *MetricsRegistry) Collect(ctx context.Context) map[string]any {
	out := make(map[string]any, len(r.collectors))
	for _, c := range r.collectors {
		v, err := c.Collect(ctx)
		if err != nil {
			r.logger.Warn().Err(err).Str("metric", c.Name()).Msg("Failed to collect metric")
			continue
		}
		out[c.Name()] = v
	}
	return out
}
