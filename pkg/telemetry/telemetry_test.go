package telemetry_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leontov-kolibri/kolibri-x/pkg/slo"
	"github.com/leontov-kolibri/kolibri-x/pkg/telemetry"
)

func TestNewProviderRejectsEmptyServiceName(t *testing.T) {
	_, err := telemetry.NewProvider("")
	assert.Error(t, err)
}

func TestNewProviderBuildsInstruments(t *testing.T) {
	p, err := telemetry.NewProvider("kolibrid")
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	require.NotNil(t, p.Instruments())
	require.NotNil(t, p.Tracer())

	ctx, span := p.StartStage(context.Background(), "encode")
	p.Instruments().RecordStage(ctx, "encode", 12.5)
	span.End()
}

func TestRecordCacheAndSandboxDoNotPanic(t *testing.T) {
	p, err := telemetry.NewProvider("kolibrid")
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	ctx := context.Background()
	p.Instruments().RecordCache(ctx, "rag_cache", true)
	p.Instruments().RecordCache(ctx, "rag_cache", false)
	p.Instruments().RecordSandboxRun(ctx, "writer", false, "")
	p.Instruments().RecordSandboxRun(ctx, "writer", true, "timeout")
	p.Instruments().RecordIoTDispatch(ctx, "lamp1", "executed")
}

func TestSLOCollectorExposesPercentilesAndBreaches(t *testing.T) {
	tracker := slo.NewTracker(256, nil)
	for i := 0; i < 10; i++ {
		tracker.Observe("execute", 900)
	}

	collector := telemetry.NewSLOCollector(tracker)
	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(collector))

	families, err := registry.Gather()
	require.NoError(t, err)

	var breachedValue float64
	var found bool
	for _, family := range families {
		if family.GetName() != "kolibri_slo_stage_breached" {
			continue
		}
		for _, metric := range family.GetMetric() {
			if labelValue(metric, "stage") == "execute" {
				breachedValue = metric.GetGauge().GetValue()
				found = true
			}
		}
	}
	require.True(t, found)
	assert.Equal(t, 1.0, breachedValue)
}

func labelValue(m *dto.Metric, name string) string {
	for _, pair := range m.GetLabel() {
		if pair.GetName() == name {
			return pair.GetValue()
		}
	}
	return ""
}
