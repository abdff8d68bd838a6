// Package traces wires OpenTelemetry spans around simulation ticks, panel
// controls and session persistence.
package traces

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName  = "github.com/mbd888/guardlens"
	serviceName = "guardlens"
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

type options struct {
	env         string
	sampleRatio float64
}

// Option configures Init.
type Option func(*options)

// WithEnvironment tags every span with deployment.environment.
func WithEnvironment(env string) Option {
	return func(o *options) { o.env = env }
}

// WithSampleRatio samples root spans at ratio (0..1). Ticks run several
// times a second per panel, so production should sample.
func WithSampleRatio(ratio float64) Option {
	return func(o *options) {
		if ratio >= 0 && ratio <= 1 {
			o.sampleRatio = ratio
		}
	}
}

func noop(context.Context) error { return nil }

// Init installs a global tracer provider exporting to otlpEndpoint over
// gRPC. An empty endpoint leaves the global no-op provider in place.
func Init(ctx context.Context, otlpEndpoint, version string, logger *slog.Logger, opts ...Option) (ShutdownFunc, error) {
	if otlpEndpoint == "" {
		logger.Info("tracing disabled (no OTEL_EXPORTER_OTLP_ENDPOINT set)")
		return noop, nil
	}

	o := options{sampleRatio: 1}
	for _, opt := range opts {
		opt(&o)
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(otlpEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	}
	if o.env != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(o.env))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, err
	}

	tp := newProvider(sdktrace.WithBatcher(exporter), res, o.sampleRatio)
	otel.SetTracerProvider(tp)

	logger.Info("tracing enabled", "endpoint", otlpEndpoint, "sample_ratio", o.sampleRatio)
	return tp.Shutdown, nil
}

func newProvider(processor sdktrace.TracerProviderOption, res *resource.Resource, ratio float64) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		processor,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
}

// StartSpan starts a span on the global tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError marks span failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func Page(slug string) attribute.KeyValue { return attribute.String("guardlens.page", slug) }

func Panel(id string) attribute.KeyValue { return attribute.String("guardlens.panel", id) }

func SessionID(id string) attribute.KeyValue { return attribute.String("guardlens.session.id", id) }

func Action(name string) attribute.KeyValue { return attribute.String("guardlens.action", name) }
