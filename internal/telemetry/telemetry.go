// Package telemetry configures OpenTelemetry tracing for Clarvoy.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config controls trace export. Telemetry is off unless Enabled is set.
type Config struct {
	Enabled        bool          `koanf:"enabled" yaml:"enabled"`
	Endpoint       string        `koanf:"endpoint" yaml:"endpoint"`
	Insecure       bool          `koanf:"insecure" yaml:"insecure"`
	ServiceName    string        `koanf:"service_name" yaml:"service_name"`
	ServiceVersion string        `koanf:"service_version" yaml:"service_version"`
	SampleRate     float64       `koanf:"sample_rate" yaml:"sample_rate" validate:"gte=0,lte=1"`
	ShutdownAfter  time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// DefaultConfig returns a disabled config pointing at a local collector.
func DefaultConfig() Config {
	return Config{
		Endpoint:       "localhost:4318",
		Insecure:       true,
		ServiceName:    "clarvoy",
		ServiceVersion: "dev",
		SampleRate:     1.0,
		ShutdownAfter:  5 * time.Second,
	}
}

// Validate checks fields required when export is enabled.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint is required when telemetry is enabled"))
	}
	if c.ServiceName == "" {
		errs = append(errs, errors.New("service_name is required when telemetry is enabled"))
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("sample_rate must be within [0, 1], got %v", c.SampleRate))
	}
	return errors.Join(errs...)
}

// Telemetry owns the tracer provider for the life of the process.
type Telemetry struct {
	provider trace.TracerProvider
	shutdown func(context.Context) error
	timeout  time.Duration
}

// New installs a global tracer provider and W3C propagator. When disabled
// the provider is a no-op and Shutdown does nothing.
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{
			provider: noop.NewTracerProvider(),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(stripScheme(cfg.Endpoint))}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		)),
		sdktrace.WithSampler(newSampler(cfg.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Telemetry{provider: tp, shutdown: tp.Shutdown, timeout: cfg.ShutdownAfter}, nil
}

func newSampler(rate float64) sdktrace.Sampler {
	var sampler sdktrace.Sampler
	switch {
	case rate >= 1:
		sampler = sdktrace.AlwaysSample()
	case rate <= 0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(rate)
	}
	return sdktrace.ParentBased(sampler)
}

// TracerProvider returns the provider installed by New.
func (t *Telemetry) TracerProvider() trace.TracerProvider { return t.provider }

// Shutdown flushes pending spans, bounded by the configured timeout.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.shutdown(ctx)
}

// stripScheme removes http:// or https://; the exporter wants host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}
