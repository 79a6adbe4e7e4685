// Package telemetry wires pipeline stage timings, cache outcomes, and
// sandbox executions into OpenTelemetry metric/trace instruments, and
// exposes the same SLO data to a Prometheus scrape endpoint.
package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Provider owns the runtime's tracer and meter providers and the derived
// instrument set.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	instruments    *Instruments
}

// NewProvider builds a Provider for serviceName. Spans are exported to an
// OTLP/gRPC collector when KOLIBRI_OTLP_ENDPOINT is set, matching the
// teacher's OTLP exporter stack; otherwise they fall back to stdouttrace,
// since a single-process on-device runtime usually has no collector to
// POST to. Instruments record metrics into an in-process manual reader;
// the Prometheus SLOCollector does not use that reader and reads an
// slo.Tracker directly.
func NewProvider(serviceName string) (*Provider, error) {
	if serviceName == "" {
		return nil, fmt.Errorf("service name cannot be empty")
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceNameKey.String(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("building otel resource: %w", err)
	}

	spanExporter, err := newSpanExporter()
	if err != nil {
		return nil, fmt.Errorf("building span exporter: %w", err)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)

	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(meterProvider)

	tracer := tracerProvider.Tracer(serviceName)
	instruments, err := newInstruments(meterProvider.Meter(serviceName))
	if err != nil {
		return nil, fmt.Errorf("building metric instruments: %w", err)
	}

	return &Provider{
		tracerProvider: tracerProvider,
		meterProvider:  meterProvider,
		tracer:         tracer,
		instruments:    instruments,
	}, nil
}

// newSpanExporter builds an OTLP/gRPC exporter pointed at
// KOLIBRI_OTLP_ENDPOINT when set, else a pretty-printed stdout exporter.
func newSpanExporter() (sdktrace.SpanExporter, error) {
	endpoint := os.Getenv("KOLIBRI_OTLP_ENDPOINT")
	if endpoint == "" {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	return otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
}

// Tracer returns the runtime's tracer for stage spans.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Instruments returns the shared metric instrument set.
func (p *Provider) Instruments() *Instruments { return p.instruments }

// Shutdown flushes and closes both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		return err
	}
	return p.meterProvider.Shutdown(ctx)
}

// StartStage starts a span named after a pipeline stage, matching the
// 12-stage request pipeline's stage names (privacy, encode, fuse,
// cache, plan, retrieve, execute, personalize, journal, ...).
func (p *Provider) StartStage(ctx context.Context, stage string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, stage)
}
