package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/flowkit/orchestrator/internal/catalog"
	"github.com/flowkit/orchestrator/internal/hooks"
	"github.com/flowkit/orchestrator/internal/logging"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestSubscribeIncrementsCountersOnMatchingHookEvents(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	bus := hooks.New(logging.NoOpLogger{})
	m.Subscribe(bus)

	bus.Fire(context.Background(), hooks.OnCacheHit, "A")
	bus.Fire(context.Background(), hooks.OnCacheMiss, "B")
	bus.Fire(context.Background(), hooks.OnCacheMiss, "C")
	bus.Fire(context.Background(), hooks.OnFailure, map[string]interface{}{"step": "B"})

	require.Equal(t, 1.0, counterValue(t, m.CacheHits))
	require.Equal(t, 2.0, counterValue(t, m.CacheMisses))
	require.Equal(t, 1.0, counterValue(t, m.NodeFailures))
}

func TestObserveMetricsRecordsDurationsAndWidestLayer(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.ObserveMetrics([]catalog.NodeMetrics{
		{Step: "A", Duration: 10 * time.Millisecond},
		{Step: "B", Duration: 20 * time.Millisecond},
	}, 3)

	require.Equal(t, 3.0, gaugeValue(t, m.LayerWidth))

	var hist dto.Metric
	require.NoError(t, m.NodeDuration.Write(&hist))
	require.Equal(t, uint64(2), hist.GetHistogram().GetSampleCount())
}

func TestNewRejectsDuplicateRegistrationAgainstSameRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	require.Error(t, err)
}
