package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsForTesting(t *testing.T) {
	m := NewMetricsForTesting()

	m.Assessments.WithLabelValues("high").Inc()
	m.WeatherRequests.WithLabelValues("rich", "success").Inc()
	m.WeatherFallbacks.WithLabelValues("simple").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Assessments.WithLabelValues("high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WeatherRequests.WithLabelValues("rich", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WeatherFallbacks.WithLabelValues("simple")))
}

func TestNewMetricsForTesting_Registrable(t *testing.T) {
	m := NewMetricsForTesting()
	reg := prometheus.NewRegistry()

	require.NoError(t, reg.Register(m.Assessments))
	require.NoError(t, reg.Register(m.AICache))

	m.AICache.WithLabelValues("hit").Inc()
	count, err := testutil.GatherAndCount(reg, "heat_risk_ai_cache_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
