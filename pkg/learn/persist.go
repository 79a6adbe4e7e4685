package learn

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

type aggregatorState struct {
	NoiseScale float64            `json:"noise_scale"`
	Sums       map[string]float64 `json:"sums"`
	Counts     map[string]int     `json:"counts"`
}

type sampleState struct {
	TaskID     string            `json:"task_id"`
	Gradients  map[string]float64 `json:"gradients"`
	Confidence float64           `json:"confidence"`
	Metadata   map[string]string `json:"metadata"`
	UserID     string            `json:"user_id"`
	Timestamp  time.Time         `json:"timestamp"`
}

type historyState struct {
	Timestamp time.Time                     `json:"timestamp"`
	Updates   map[string]map[string]float64 `json:"updates"`
	Pending   map[string]int                `json:"pending"`
}

type learnerConfigState struct {
	NoiseScale    float64 `json:"noise_scale"`
	Clipping      float64 `json:"clipping"`
	MinWeight     float64 `json:"min_weight"`
	HistorySize   int     `json:"history_size"`
	SampleLimit   int     `json:"sample_limit"`
	Consolidation float64 `json:"consolidation"`
}

type continualState struct {
	Tasks   []string                       `json:"tasks"`
	Weights map[string]map[string]float64 `json:"weights"`
}

type persistedState struct {
	Config       learnerConfigState          `json:"config"`
	Aggregators  map[string]aggregatorState  `json:"aggregators"`
	PendingCount map[string]int              `json:"pending_counts"`
	History      []historyState              `json:"history"`
	Samples      []sampleState               `json:"samples"`
	Learner      continualState              `json:"learner"`
	DriftScores  map[string]float64          `json:"drift_scores,omitempty"`
}

// Save writes the learner's full state (config, aggregators, history,
// samples, continual weights) to path as JSON, creating parent
// directories as needed.
func (l *Learner) Save(path string, drift *DriftTracker) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	aggregators := make(map[string]aggregatorState, len(l.aggregators))
	for task, agg := range l.aggregators {
		aggregators[task] = aggregatorState{NoiseScale: agg.NoiseScale, Sums: agg.Peek(), Counts: copyIntMap(agg.counts)}
	}

	history := make([]historyState, 0, len(l.history))
	for _, h := range l.history {
		history = append(history, historyState{Timestamp: h.Timestamp, Updates: h.Updates, Pending: h.Pending})
	}

	samples := make([]sampleState, 0, len(l.samples))
	for _, s := range l.samples {
		samples = append(samples, sampleState{
			TaskID: s.TaskID, Gradients: s.Gradients, Confidence: s.Confidence,
			Metadata: s.Metadata, UserID: s.UserID, Timestamp: s.Timestamp,
		})
	}

	tasks, weights := l.continual.Snapshot()

	var driftScores map[string]float64
	if drift != nil {
		driftScores = drift.Snapshot()
	}

	state := persistedState{
		Config: learnerConfigState{
			NoiseScale: l.NoiseScale, Clipping: l.Clipping, MinWeight: l.MinWeight,
			HistorySize: l.HistorySize, SampleLimit: l.SampleLimit, Consolidation: l.continual.Consolidation,
		},
		Aggregators:  aggregators,
		PendingCount: copyIntMap(l.pendingCounts),
		History:      history,
		Samples:      samples,
		Learner:      continualState{Tasks: tasks, Weights: weights},
		DriftScores:  driftScores,
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load restores the learner's state from path. A missing file is not an
// error: the learner simply keeps its current (fresh) state.
func (l *Learner) Load(path string, drift *DriftTracker) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}

	l.NoiseScale = state.Config.NoiseScale
	l.Clipping = state.Config.Clipping
	l.MinWeight = state.Config.MinWeight
	if state.Config.HistorySize > 0 {
		l.HistorySize = state.Config.HistorySize
	}
	if state.Config.SampleLimit > 0 {
		l.SampleLimit = state.Config.SampleLimit
	}
	l.continual.Consolidation = state.Config.Consolidation

	l.aggregators = map[string]*SecureAggregator{}
	for task, agg := range state.Aggregators {
		a := NewSecureAggregator(agg.NoiseScale)
		for k, v := range agg.Sums {
			a.sums[k] = v
		}
		for k, v := range agg.Counts {
			a.counts[k] = v
		}
		l.aggregators[task] = a
	}

	l.pendingCounts = copyIntMap(state.PendingCount)

	l.history = l.history[:0]
	for _, h := range state.History {
		l.history = append(l.history, HistoryEntry{Timestamp: h.Timestamp, Updates: h.Updates, Pending: h.Pending})
	}

	l.samples = l.samples[:0]
	for _, s := range state.Samples {
		l.samples = append(l.samples, Sample{
			TaskID: s.TaskID, Gradients: s.Gradients, Confidence: s.Confidence,
			Metadata: s.Metadata, UserID: s.UserID, Timestamp: s.Timestamp,
		})
	}

	l.continual.Restore(state.Learner.Weights)

	if drift != nil && state.DriftScores != nil {
		drift.Restore(state.DriftScores)
	}

	return nil
}

func copyIntMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
