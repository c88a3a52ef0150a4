package middleware

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/clarvoy/clarvoy/internal/domain"
	"github.com/clarvoy/clarvoy/internal/ports"
)

var _ ports.NoiseObserver = (*OTelNoiseObserver)(nil)

// OTelNoiseObserver records each noise calculation as a span and feeds the
// metrics collector. A high-noise result adds a "noise.high" span event.
type OTelNoiseObserver struct {
	metrics ports.MetricsCollector
	tracer  trace.Tracer
}

// NewOTelNoiseObserver uses the global tracer provider. metrics may be nil.
func NewOTelNoiseObserver(metrics ports.MetricsCollector) *OTelNoiseObserver {
	return NewOTelNoiseObserverWithProvider(metrics, otel.GetTracerProvider())
}

// NewOTelNoiseObserverWithProvider uses tp for spans.
func NewOTelNoiseObserverWithProvider(metrics ports.MetricsCollector, tp trace.TracerProvider) *OTelNoiseObserver {
	return &OTelNoiseObserver{
		metrics: metrics,
		tracer:  tp.Tracer("github.com/clarvoy/clarvoy/infrastructure/middleware"),
	}
}

// ObserveNoise implements ports.NoiseObserver.
func (o *OTelNoiseObserver) ObserveNoise(ctx context.Context, decisionID int64, report domain.NoiseReport, elapsed time.Duration) {
	end := time.Now()
	_, span := o.tracer.Start(ctx, "noise.calculate", trace.WithTimestamp(end.Add(-elapsed)))
	defer span.End(trace.WithTimestamp(end))

	span.SetAttributes(
		attribute.Int64("decision.id", decisionID),
		attribute.Int("noise.count", report.Count),
		attribute.Float64("noise.mean", report.Mean),
		attribute.Float64("noise.std_dev", report.StdDev),
		attribute.Bool("noise.high", report.IsHighNoise),
	)
	if report.IsHighNoise {
		span.AddEvent("noise.high", trace.WithAttributes(
			attribute.Float64("noise.std_dev", report.StdDev),
		))
	}
	span.SetStatus(codes.Ok, "")

	if o.metrics == nil {
		return
	}
	o.metrics.RecordLatency("noise_calculation", elapsed, nil)
	o.metrics.RecordCounter(MetricNoiseCalculations, 1, map[string]string{
		"judged": strconv.FormatBool(report.Count > 0),
	})
	if report.Count == 0 {
		return
	}
	o.metrics.RecordHistogram(MetricNoiseStdDev, report.StdDev, nil)
	o.metrics.RecordHistogram(MetricJudgmentsCount, float64(report.Count), nil)
	if report.IsHighNoise {
		o.metrics.RecordCounter(MetricNoiseHigh, 1, nil)
	}
}
