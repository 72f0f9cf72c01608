package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCreation(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	assert.NotNil(t, m.StoresTotal)
	assert.NotNil(t, m.LookupHits)
	assert.NotNil(t, m.BucketEvictions)
	assert.NotNil(t, m.EntriesLive)
	assert.NotNil(t, m.RoutingTablePeers)
}

func TestCountersAccumulate(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.BucketEvictions.Inc()
	m.BucketEvictions.Inc()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.BucketEvictions))

	m.EntriesLive.Set(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(m.EntriesLive))
}
