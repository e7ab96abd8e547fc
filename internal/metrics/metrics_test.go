package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ConnectedSessions.Set(3)
	m.PluginRestarts.WithLabelValues("calc").Inc()
	m.QueryLatency.Observe(0.05)
	m.IndexedItems.WithLabelValues("calc").Set(12)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["hamr_connected_sessions"])
	assert.True(t, names["hamr_plugin_restarts_total"])
	assert.True(t, names["hamr_query_latency_seconds"])
	assert.True(t, names["hamr_indexed_items"])
}

func TestNew_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
