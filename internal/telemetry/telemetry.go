// Package telemetry exposes the orchestrator's runtime metrics via
// github.com/prometheus/client_golang, subscribed to internal/hooks events
// rather than wired directly into internal/execengine, the same
// decoupling the registry uses for its Notifier, so the execution engine
// never imports a metrics library directly.
package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/flowkit/orchestrator/internal/catalog"
	"github.com/flowkit/orchestrator/internal/hooks"
)

// Metrics holds every Prometheus collector the orchestrator registers.
type Metrics struct {
	NodeDuration prometheus.Histogram
	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
	LayerWidth   prometheus.Gauge
	NodeFailures prometheus.Counter
}

// New creates and registers the collectors against reg (typically
// prometheus.NewRegistry(), not the global DefaultRegisterer, so multiple
// Engine instances in one test binary don't collide).
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		NodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orchestrator_node_duration_seconds",
			Help:    "Wall-clock duration of one node's method-chain execution.",
			Buckets: prometheus.DefBuckets,
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_cache_hits_total",
			Help: "Nodes whose signature matched the on-disk cache and were skipped.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_cache_misses_total",
			Help: "Nodes that executed because no matching cached signature was found.",
		}),
		LayerWidth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_layer_width",
			Help: "Number of nodes in the widest execution layer of the run.",
		}),
		NodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_node_failures_total",
			Help: "Nodes that ended a run in failed or soft_fail status.",
		}),
	}

	for _, c := range []prometheus.Collector{m.NodeDuration, m.CacheHits, m.CacheMisses, m.LayerWidth, m.NodeFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Subscribe wires m to bus so every relevant hook event updates the
// matching collector.
func (m *Metrics) Subscribe(bus *hooks.Bus) {
	bus.Register(hooks.OnCacheHit, func(ctx context.Context, event string, payload interface{}) error {
		m.CacheHits.Inc()
		return nil
	})
	bus.Register(hooks.OnCacheMiss, func(ctx context.Context, event string, payload interface{}) error {
		m.CacheMisses.Inc()
		return nil
	})
	bus.Register(hooks.OnFailure, func(ctx context.Context, event string, payload interface{}) error {
		m.NodeFailures.Inc()
		return nil
	})
}

// ObserveMetrics feeds a completed run's lineage into m (node durations
// and the widest layer observed), since per-node duration isn't available
// from hook payloads alone: they carry only the step name.
func (m *Metrics) ObserveMetrics(records []catalog.NodeMetrics, widestLayer int) {
	for _, r := range records {
		m.NodeDuration.Observe(r.Duration.Seconds())
	}
	m.LayerWidth.Set(float64(widestLayer))
}

// Snapshot gathers every collector registered against reg into a flat
// name->value map, so a single run's counters can be persisted to disk
// (cachestore.RunMetrics) and printed later by a separate `metrics`
// invocation rather than read live off the in-process registry.
func Snapshot(reg prometheus.Gatherer) (map[string]float64, error) {
	families, err := reg.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(families))
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			out[fam.GetName()] = metricValue(m)
		}
	}
	return out, nil
}

func metricValue(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Histogram != nil:
		return m.Histogram.GetSampleSum()
	default:
		return 0
	}
}
