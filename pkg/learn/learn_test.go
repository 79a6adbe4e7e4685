package learn_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leontov-kolibri/kolibri-x/pkg/learn"
)

func TestSecureAggregatorClipsAndAverages(t *testing.T) {
	agg := learn.NewSecureAggregator(0)
	agg.Submit(learn.ModelUpdate{UserID: "a", Values: map[string]float64{"w1": 5.0}, Clipping: 1.0})
	agg.Submit(learn.ModelUpdate{UserID: "b", Values: map[string]float64{"w1": -5.0}, Clipping: 1.0})
	out := agg.Aggregate()
	assert.InDelta(t, 0.0, out["w1"], 1e-9)
}

func TestSecureAggregatorAggregateClearsState(t *testing.T) {
	agg := learn.NewSecureAggregator(0)
	agg.Submit(learn.ModelUpdate{UserID: "a", Values: map[string]float64{"w1": 0.4}, Clipping: 1.0})
	first := agg.Aggregate()
	assert.InDelta(t, 0.4, first["w1"], 1e-9)
	second := agg.Aggregate()
	assert.Empty(t, second)
}

func TestContinualLearnerBlendsTowardGradient(t *testing.T) {
	c := learn.NewContinualLearner(0.5)
	first := c.Train("task1", map[string]float64{"w1": 1.0})
	assert.InDelta(t, 0.5, first["w1"], 1e-9)
	second := c.Train("task1", map[string]float64{"w1": 1.0})
	assert.InDelta(t, 0.75, second["w1"], 1e-9)
}

func TestContinualLearnerSnapshotIsSortedAndIsolated(t *testing.T) {
	c := learn.NewContinualLearner(0.5)
	c.Train("b", map[string]float64{"w1": 1.0})
	c.Train("a", map[string]float64{"w1": 1.0})
	tasks, weights := c.Snapshot()
	assert.Equal(t, []string{"a", "b"}, tasks)
	weights["a"]["w1"] = 999
	_, weights2 := c.Snapshot()
	assert.NotEqual(t, 999.0, weights2["a"]["w1"])
}

func TestLearnerEnqueueScalesByConfidence(t *testing.T) {
	l := learn.NewLearner(nil, 0, 1.0, 0.05, 32, 256)
	l.Enqueue("task1", map[string]float64{"w1": 1.0}, 0.9, nil, "u1")
	samples := l.RecentSamples(1)
	require.Len(t, samples, 1)
	assert.InDelta(t, 0.9, samples[0].Confidence, 1e-9)

	updates := l.Step()
	require.Contains(t, updates, "task1")
	// weight = max(0.05, 1-0.9) = 0.1, consolidation default 0.3 => 1.0*0.1*0.3
	assert.InDelta(t, 1.0*0.1*0.3, updates["task1"]["w1"], 1e-9)
}

func TestLearnerEnqueueEmptyGradientsIsNoop(t *testing.T) {
	l := learn.NewLearner(nil, 0, 1.0, 0.05, 32, 256)
	l.Enqueue("task1", map[string]float64{}, 0.5, nil, "u1")
	assert.Empty(t, l.RecentSamples(10))
	assert.Empty(t, l.Status().Tasks)
}

func TestLearnerStepOnlyProcessesPendingTasks(t *testing.T) {
	l := learn.NewLearner(nil, 0, 1.0, 0.05, 32, 256)
	l.Enqueue("task1", map[string]float64{"w1": 1.0}, 0.5, nil, "u1")
	l.Step()
	updates := l.Step()
	assert.Empty(t, updates)
}

func TestLearnerHistoryAndStatus(t *testing.T) {
	l := learn.NewLearner(nil, 0, 1.0, 0.05, 32, 256)
	l.Enqueue("task1", map[string]float64{"w1": 1.0}, 0.5, nil, "u1")
	l.Step()
	status := l.Status()
	assert.Equal(t, []string{"task1"}, status.Tasks)
	assert.Len(t, l.History(5), 1)
}

func TestLearnerHistoryBoundedBySize(t *testing.T) {
	l := learn.NewLearner(nil, 0, 1.0, 0.05, 2, 256)
	for i := 0; i < 5; i++ {
		l.Enqueue("task1", map[string]float64{"w1": 1.0}, 0.5, nil, "u1")
		l.Step()
	}
	assert.Len(t, l.History(10), 2)
}

func TestLearnerSampleLimitBounded(t *testing.T) {
	l := learn.NewLearner(nil, 0, 1.0, 0.05, 32, 3)
	for i := 0; i < 10; i++ {
		l.Enqueue("task1", map[string]float64{"w1": 1.0}, 0.5, nil, "u1")
	}
	assert.Len(t, l.RecentSamples(100), 3)
}

func TestLearnerSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "learner.json")

	l := learn.NewLearner(learn.NewContinualLearner(0.4), 0, 1.0, 0.05, 32, 256)
	drift := learn.NewDriftTracker(0.2, 0.5)
	l.Enqueue("task1", map[string]float64{"w1": 1.0}, 0.2, map[string]string{"status": "ok"}, "u1")
	drift.Observe("task1", map[string]string{"status": "ok"})
	l.Step()

	require.NoError(t, l.Save(path, drift))

	restored := learn.NewLearner(learn.NewContinualLearner(0.9), 0, 1.0, 0.05, 32, 256)
	restoredDrift := learn.NewDriftTracker(0.2, 0.5)
	require.NoError(t, restored.Load(path, restoredDrift))

	assert.Equal(t, l.Status().Tasks, restored.Status().Tasks)
	assert.InDelta(t, 0.4, restored.Continual().Consolidation, 1e-9)

	score, ok := restoredDrift.Score("task1")
	assert.True(t, ok)
	assert.InDelta(t, 0.0, score, 1e-9)
}

func TestLearnerLoadMissingFileIsNoop(t *testing.T) {
	l := learn.NewLearner(nil, 0, 1.0, 0.05, 32, 256)
	err := l.Load(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.NoError(t, err)
}

func TestDriftTrackerFlagsDegradedTask(t *testing.T) {
	d := learn.NewDriftTracker(0.5, 0.5)
	d.Observe("task1", map[string]string{"status": "ok"})
	d.Observe("task1", map[string]string{"status": "error"})
	degraded := d.Degraded()
	assert.Contains(t, degraded, "task1")
}

func TestDriftTrackerSmoothsTowardNewScore(t *testing.T) {
	d := learn.NewDriftTracker(0.5, 0.9)
	d.Observe("task1", map[string]string{"status": "ok"})
	score := d.Observe("task1", map[string]string{"status": "failure"})
	assert.InDelta(t, 0.5, score, 1e-9)
}

func TestDriftTrackerUnknownTaskNotObserved(t *testing.T) {
	d := learn.NewDriftTracker(0.5, 0.5)
	_, ok := d.Score("missing")
	assert.False(t, ok)
}
