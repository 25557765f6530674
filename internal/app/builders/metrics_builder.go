package builders

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aatumaykin/sequencer/internal/config"
	"github.com/aatumaykin/sequencer/internal/metrics"
)

type MetricsBuilder struct {
	config   *config.Config
	registry *prometheus.Registry
}

// NewMetricsBuilder creates a builder. A nil registry means a fresh one.
func NewMetricsBuilder(cfg *config.Config, reg *prometheus.Registry) *MetricsBuilder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &MetricsBuilder{
		config:   cfg,
		registry: reg,
	}
}

// Build registers the sequencer collectors, plus the Go runtime and process
// collectors when the endpoint is exposed.
func (b *MetricsBuilder) Build() *metrics.Metrics {
	if b.config.Metrics.Enabled {
		b.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return metrics.New(b.registry)
}
