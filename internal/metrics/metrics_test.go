package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsOnIsolatedRegistries(t *testing.T) {
	m1 := NewMetrics(prometheus.NewRegistry())
	m2 := NewMetrics(prometheus.NewRegistry())

	m1.Rotations.WithLabelValues("global").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m1.Rotations.WithLabelValues("global")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m2.Rotations.WithLabelValues("global")))
}

func TestOrUnregistered(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	assert.Same(t, m, OrUnregistered(m))

	a, b := OrUnregistered(nil), OrUnregistered(nil)
	a.SyncRuns.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SyncRuns))
}
