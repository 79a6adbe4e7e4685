package slo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leontov-kolibri/kolibri-x/pkg/slo"
)

func TestObserveAndReportComputesPercentiles(t *testing.T) {
	tr := slo.NewTracker(256, nil)
	for i := 1; i <= 100; i++ {
		tr.Observe("encode", float64(i))
	}
	report := tr.Report()["encode"]
	assert.Equal(t, 100, report.Count)
	assert.InDelta(t, 50, report.P50, 2)
	assert.InDelta(t, 95, report.P95, 2)
	assert.InDelta(t, 99, report.P99, 2)
}

func TestTrackerWindowIsBounded(t *testing.T) {
	tr := slo.NewTracker(10, nil)
	for i := 0; i < 50; i++ {
		tr.Observe("plan", float64(i))
	}
	report := tr.Report()["plan"]
	assert.Equal(t, 10, report.Count)
}

func TestBuildReportFlagsBreachAboveDefaultThreshold(t *testing.T) {
	tr := slo.NewTracker(256, nil)
	for i := 0; i < 20; i++ {
		tr.Observe("execute", 900)
	}
	built := tr.BuildReport()
	require.Len(t, built.Breaches, 1)
	assert.Equal(t, "execute", built.Breaches[0].Stage)
	assert.InDelta(t, 750.0, built.Breaches[0].Threshold, 1e-9)
}

func TestBuildReportUsesConfiguredThreshold(t *testing.T) {
	tr := slo.NewTracker(256, map[string]float64{"retrieve": 100})
	for i := 0; i < 20; i++ {
		tr.Observe("retrieve", 150)
	}
	built := tr.BuildReport()
	require.Len(t, built.Breaches, 1)
	assert.Equal(t, "retrieve", built.Breaches[0].Stage)
	assert.InDelta(t, 100.0, built.Breaches[0].Threshold, 1e-9)
}

func TestBuildReportNoBreachesWhenWithinThreshold(t *testing.T) {
	tr := slo.NewTracker(256, nil)
	tr.Observe("journal", 10)
	built := tr.BuildReport()
	assert.Empty(t, built.Breaches)
}
