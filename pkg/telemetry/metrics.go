package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instruments is the fixed set of metric instruments shared across the
// runtime pipeline, cache layers, and sandbox.
type Instruments struct {
	StageLatency    metric.Float64Histogram
	CacheHits       metric.Int64Counter
	CacheMisses     metric.Int64Counter
	SandboxRuns     metric.Int64Counter
	SandboxFailures metric.Int64Counter
	IoTDispatches   metric.Int64Counter
}

func newInstruments(meter metric.Meter) (*Instruments, error) {
	stageLatency, err := meter.Float64Histogram(
		"kolibri.pipeline.stage_latency_ms",
		metric.WithDescription("Per-stage request pipeline latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"kolibri.cache.hits",
		metric.WithDescription("Cache hits by cache name"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"kolibri.cache.misses",
		metric.WithDescription("Cache misses by cache name"),
	)
	if err != nil {
		return nil, err
	}

	sandboxRuns, err := meter.Int64Counter(
		"kolibri.sandbox.runs",
		metric.WithDescription("Sandboxed skill invocations by skill name"),
	)
	if err != nil {
		return nil, err
	}

	sandboxFailures, err := meter.Int64Counter(
		"kolibri.sandbox.failures",
		metric.WithDescription("Sandboxed skill invocation failures by skill name and reason"),
	)
	if err != nil {
		return nil, err
	}

	iotDispatches, err := meter.Int64Counter(
		"kolibri.iot.dispatches",
		metric.WithDescription("IoT command dispatch outcomes by device and status"),
	)
	if err != nil {
		return nil, err
	}

	return &Instruments{
		StageLatency:    stageLatency,
		CacheHits:       cacheHits,
		CacheMisses:     cacheMisses,
		SandboxRuns:     sandboxRuns,
		SandboxFailures: sandboxFailures,
		IoTDispatches:   iotDispatches,
	}, nil
}

// RecordStage records one stage's observed latency.
func (i *Instruments) RecordStage(ctx context.Context, stage string, ms float64) {
	i.StageLatency.Record(ctx, ms, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordCache records a cache hit or miss for a named cache.
func (i *Instruments) RecordCache(ctx context.Context, cacheName string, hit bool) {
	attr := metric.WithAttributes(attribute.String("cache", cacheName))
	if hit {
		i.CacheHits.Add(ctx, 1, attr)
		return
	}
	i.CacheMisses.Add(ctx, 1, attr)
}

// RecordSandboxRun records a sandboxed skill invocation outcome.
func (i *Instruments) RecordSandboxRun(ctx context.Context, skill string, failed bool, reason string) {
	i.SandboxRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("skill", skill)))
	if failed {
		i.SandboxFailures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("skill", skill),
			attribute.String("reason", reason),
		))
	}
}

// RecordIoTDispatch records an IoT command dispatch outcome.
func (i *Instruments) RecordIoTDispatch(ctx context.Context, deviceID, status string) {
	i.IoTDispatches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("device", deviceID),
		attribute.String("status", status),
	))
}
