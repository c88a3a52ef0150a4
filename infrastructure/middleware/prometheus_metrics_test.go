package middleware

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) (*PrometheusMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheusMetrics(reg), reg
}

// TestNewPrometheusMetrics_IsolatedRegistries checks that separate
// registries can each hold a full set of series.
func TestNewPrometheusMetrics_IsolatedRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPrometheusMetrics(prometheus.NewRegistry())
		NewPrometheusMetrics(prometheus.NewRegistry())
	})
}

// TestPrometheusMetrics_RecordCounter routes counters to their series.
func TestPrometheusMetrics_RecordCounter(t *testing.T) {
	pm, _ := newTestMetrics(t)

	pm.RecordCounter(MetricHTTPRequests, 1, map[string]string{"method": "GET", "route": "/api/decisions", "status": "200"})
	pm.RecordCounter(MetricHTTPRequests, 1, map[string]string{"method": "GET", "route": "/api/decisions", "status": "200"})
	pm.RecordCounter(MetricLLMTokens, 42, map[string]string{"provider": "claude", "model": "m", "direction": "input"})
	pm.RecordCounter(MetricNoiseHigh, 1, nil)
	pm.RecordCounter(MetricAuditEvents, 1, map[string]string{"action": "BIAS_ALERT"})
	pm.RecordCounter(MetricAuditEvents, 1, nil)
	pm.RecordCounter("something_else", 3, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.httpRequests.WithLabelValues("GET", "/api/decisions", "200")))
	assert.Equal(t, 42.0, testutil.ToFloat64(pm.llmTokens.WithLabelValues("claude", "m", "input")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.noiseHigh))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.auditEvents.WithLabelValues("BIAS_ALERT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.auditEvents.WithLabelValues("unknown")))
	assert.Equal(t, 3.0, testutil.ToFloat64(pm.operationCounter.WithLabelValues("something_else")))
}

// TestPrometheusMetrics_Histograms checks histogram routing and buckets.
func TestPrometheusMetrics_Histograms(t *testing.T) {
	pm, reg := newTestMetrics(t)

	pm.RecordHistogram(MetricNoiseStdDev, 4.5, nil)
	pm.RecordHistogram(MetricNoiseStdDev, 0.8, nil)
	pm.RecordLatency(MetricHTTPDuration, 120*time.Millisecond, map[string]string{"method": "POST", "route": "/api/decisions"})
	pm.RecordLatency("noise_calculation", time.Millisecond, nil)

	expected := `
# HELP noise_std_dev Standard deviation of judgment scores per noise calculation.
# TYPE noise_std_dev histogram
noise_std_dev_bucket{le="0.25"} 0
noise_std_dev_bucket{le="0.5"} 0
noise_std_dev_bucket{le="1"} 1
noise_std_dev_bucket{le="1.5"} 1
noise_std_dev_bucket{le="2"} 1
noise_std_dev_bucket{le="2.5"} 1
noise_std_dev_bucket{le="3"} 1
noise_std_dev_bucket{le="4"} 1
noise_std_dev_bucket{le="4.5"} 2
noise_std_dev_bucket{le="+Inf"} 2
noise_std_dev_sum 5.3
noise_std_dev_count 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), MetricNoiseStdDev))
	assert.Equal(t, 1, testutil.CollectAndCount(pm.httpDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(pm.operationLatency))
}

// TestPrometheusMetrics_RecordGauge checks gauge overwrite semantics.
func TestPrometheusMetrics_RecordGauge(t *testing.T) {
	pm, _ := newTestMetrics(t)

	pm.RecordGauge("open_decisions", 4, nil)
	pm.RecordGauge("open_decisions", 6, nil)

	assert.Equal(t, 6.0, testutil.ToFloat64(pm.systemGauges.WithLabelValues("open_decisions")))
}
