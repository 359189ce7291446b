package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistryRegistersCoreMetrics(t *testing.T) {
	registry := NewMetricsRegistry()
	core := registry.CoreMetrics()
	require.NotNil(t, core)

	core.RecordQuery("local", "listMovies", "ok", 0.01)
	core.RecordComponents("out", 3)
	core.RecordError("unauthorized")

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["layr_query_total"])
	assert.True(t, names["layr_wire_components_total"])
	assert.True(t, names["layr_errors_total"])
}

func TestRegisterCollectorRejectsDuplicates(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transport_requests_total",
		Help: "test",
	})
	require.NoError(t, registry.RegisterCollector("http", "requests", counter))

	err := registry.RegisterCollector("http", "requests", counter)
	require.Error(t, err)

	assert.True(t, registry.Unregister("http", "requests"))
	assert.False(t, registry.Unregister("http", "requests"))
}
