// Package middleware provides cross-cutting concerns for Clarvoy: the
// Prometheus metrics collector and the OpenTelemetry noise observer.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/clarvoy/clarvoy/internal/ports"
)

// Metric names understood by PrometheusMetrics. Anything else falls through
// to the generic operation series.
const (
	MetricHTTPRequests      = "http_requests_total"
	MetricHTTPDuration      = "http_request_duration_seconds"
	MetricLLMRequests       = "llm_requests_total"
	MetricLLMDuration       = "llm_request_duration_seconds"
	MetricLLMTokens         = "llm_tokens_total"
	MetricNoiseStdDev       = "noise_std_dev"
	MetricNoiseHigh         = "noise_high_total"
	MetricNoiseCalculations = "noise_calculations_total"
	MetricAuditEvents       = "audit_events_total"
	MetricJudgmentsCount    = "decision_judgments"
)

// PrometheusMetrics implements ports.MetricsCollector with Prometheus.
type PrometheusMetrics struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	llmRequests *prometheus.CounterVec
	llmDuration *prometheus.HistogramVec
	llmTokens   *prometheus.CounterVec

	noiseStdDev       prometheus.Histogram
	noiseHigh         prometheus.Counter
	noiseCalculations *prometheus.CounterVec
	judgments         prometheus.Histogram

	auditEvents *prometheus.CounterVec

	operationLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
}

// NewPrometheusMetrics registers every Clarvoy series with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricHTTPRequests,
				Help: "HTTP requests served, by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPDuration,
				Help:    "HTTP request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		llmRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricLLMRequests,
				Help: "Coaching completions sent to LLM providers, by outcome.",
			},
			[]string{"provider", "model", "status"},
		),
		llmDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricLLMDuration,
				Help:    "Latency of coaching completions.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
			},
			[]string{"provider", "model", "status"},
		),
		llmTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricLLMTokens,
				Help: "Tokens exchanged with LLM providers.",
			},
			[]string{"provider", "model", "direction"},
		),

		noiseStdDev: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricNoiseStdDev,
			Help:    "Standard deviation of judgment scores per noise calculation.",
			Buckets: []float64{0.25, 0.5, 1, 1.5, 2, 2.5, 3, 4, 4.5},
		}),
		noiseHigh: factory.NewCounter(prometheus.CounterOpts{
			Name: MetricNoiseHigh,
			Help: "Noise calculations whose standard deviation exceeded the threshold.",
		}),
		noiseCalculations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricNoiseCalculations,
				Help: "Noise calculations performed, by whether any judgments existed.",
			},
			[]string{"judged"},
		),
		judgments: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricJudgmentsCount,
			Help:    "Number of judgments per decision at calculation time.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
		}),

		auditEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricAuditEvents,
				Help: "Audit entries written, by action.",
			},
			[]string{"action"},
		),

		operationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clarvoy_operation_duration_seconds",
				Help:    "Latency of application operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clarvoy_operations_total",
				Help: "Application operations without a dedicated series.",
			},
			[]string{"operation"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "clarvoy_system_state",
				Help: "Point-in-time values reported by the application.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency observes duration for operation. HTTP and LLM latencies go
// to their dedicated histograms.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	switch operation {
	case MetricHTTPDuration:
		pm.httpDuration.WithLabelValues(labels["method"], labels["route"]).Observe(duration.Seconds())
	case MetricLLMDuration:
		pm.llmDuration.WithLabelValues(labels["provider"], labels["model"], labels["status"]).Observe(duration.Seconds())
	default:
		pm.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// RecordCounter adds value to the named counter.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case MetricHTTPRequests:
		pm.httpRequests.WithLabelValues(labels["method"], labels["route"], labels["status"]).Add(value)
	case MetricLLMRequests:
		pm.llmRequests.WithLabelValues(labels["provider"], labels["model"], labels["status"]).Add(value)
	case MetricLLMTokens:
		pm.llmTokens.WithLabelValues(labels["provider"], labels["model"], labels["direction"]).Add(value)
	case MetricNoiseHigh:
		pm.noiseHigh.Add(value)
	case MetricNoiseCalculations:
		pm.noiseCalculations.WithLabelValues(labelOr(labels, "judged", "false")).Add(value)
	case MetricAuditEvents:
		pm.auditEvents.WithLabelValues(labelOr(labels, "action", "unknown")).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge sets a system gauge.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	pm.systemGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram observes value in the named distribution. Latencies
// reported in seconds through this method are accepted too.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case MetricNoiseStdDev:
		pm.noiseStdDev.Observe(value)
	case MetricJudgmentsCount:
		pm.judgments.Observe(value)
	case MetricLLMDuration:
		pm.llmDuration.WithLabelValues(labels["provider"], labels["model"], labels["status"]).Observe(value)
	case MetricHTTPDuration:
		pm.httpDuration.WithLabelValues(labels["method"], labels["route"]).Observe(value)
	default:
		pm.operationLatency.WithLabelValues(metric).Observe(value)
	}
}

func labelOr(labels map[string]string, key, fallback string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return fallback
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
