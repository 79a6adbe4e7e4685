package learn

import (
	"sort"
	"time"
)

// Sample is a single weak-supervision signal captured for background
// learning.
type Sample struct {
	TaskID     string
	Gradients  map[string]float64
	Confidence float64
	Metadata   map[string]string
	UserID     string
	Timestamp  time.Time
}

// HistoryEntry records one Step's outcome.
type HistoryEntry struct {
	Timestamp time.Time
	Updates   map[string]map[string]float64
	Pending   map[string]int
}

// Status summarizes the learner's current state.
type Status struct {
	Tasks   []string
	Pending map[string]int
	History []HistoryEntry
}

// Learner aggregates weak supervision signals across tasks and folds them
// into a continual learner on each Step.
type Learner struct {
	NoiseScale  float64
	Clipping    float64
	MinWeight   float64
	HistorySize int
	SampleLimit int

	continual      *ContinualLearner
	aggregators    map[string]*SecureAggregator
	pendingCounts  map[string]int
	history        []HistoryEntry
	samples        []Sample
}

// NewLearner builds a Learner with the given continual learner (if nil, a
// default ContinualLearner with consolidation 0.3 is used) and config.
// Panics-free: non-positive config fields fall back to defaults matching
// the original runtime's invariants.
func NewLearner(continual *ContinualLearner, noiseScale, clipping, minWeight float64, historySize, sampleLimit int) *Learner {
	if continual == nil {
		continual = NewContinualLearner(0.3)
	}
	if clipping <= 0 {
		clipping = 1.0
	}
	if minWeight <= 0 {
		minWeight = 0.05
	}
	if historySize <= 0 {
		historySize = 32
	}
	if sampleLimit <= 0 {
		sampleLimit = 256
	}
	return &Learner{
		NoiseScale:    noiseScale,
		Clipping:      clipping,
		MinWeight:     minWeight,
		HistorySize:   historySize,
		SampleLimit:   sampleLimit,
		continual:     continual,
		aggregators:   map[string]*SecureAggregator{},
		pendingCounts: map[string]int{},
	}
}

// Continual exposes the underlying continual learner, e.g. for Snapshot.
func (l *Learner) Continual() *ContinualLearner {
	return l.continual
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Enqueue stores a training signal to be processed on the next Step. The
// signal's gradients are scaled down as confidence rises, so uncertain
// samples still influence the model but confident ones dominate less
// abruptly.
func (l *Learner) Enqueue(taskID string, gradients map[string]float64, confidence float64, metadata map[string]string, userID string) {
	if len(gradients) == 0 {
		return
	}
	confidence = clampConfidence(confidence)
	weight := 1.0 - confidence
	if weight < l.MinWeight {
		weight = l.MinWeight
	}
	scaled := make(map[string]float64, len(gradients))
	for name, value := range gradients {
		scaled[name] = value * weight
	}
	if userID == "" {
		userID = "anonymous"
	}
	aggregator, ok := l.aggregators[taskID]
	if !ok {
		aggregator = NewSecureAggregator(l.NoiseScale)
		l.aggregators[taskID] = aggregator
	}
	aggregator.Submit(ModelUpdate{UserID: userID, Values: scaled, Clipping: l.Clipping})

	metaCopy := make(map[string]string, len(metadata))
	for k, v := range metadata {
		metaCopy[k] = v
	}
	gradCopy := make(map[string]float64, len(gradients))
	for k, v := range gradients {
		gradCopy[k] = v
	}
	l.samples = append(l.samples, Sample{
		TaskID:     taskID,
		Gradients:  gradCopy,
		Confidence: confidence,
		Metadata:   metaCopy,
		UserID:     userID,
		Timestamp:  time.Now(),
	})
	if len(l.samples) > l.SampleLimit {
		l.samples = l.samples[len(l.samples)-l.SampleLimit:]
	}
	l.pendingCounts[taskID] = l.pendingCounts[taskID] + 1
}

// Step aggregates every task's pending updates, trains the continual
// learner on each, and records a history entry.
func (l *Learner) Step() map[string]map[string]float64 {
	updates := map[string]map[string]float64{}
	for taskID, aggregator := range l.aggregators {
		if l.pendingCounts[taskID] <= 0 {
			continue
		}
		aggregated := aggregator.Aggregate()
		l.pendingCounts[taskID] = 0
		if len(aggregated) == 0 {
			continue
		}
		updates[taskID] = l.continual.Train(taskID, aggregated)
	}

	pendingCopy := make(map[string]int, len(l.pendingCounts))
	for k, v := range l.pendingCounts {
		pendingCopy[k] = v
	}
	entry := HistoryEntry{Timestamp: time.Now(), Updates: updates, Pending: pendingCopy}
	l.history = append(l.history, entry)
	if len(l.history) > l.HistorySize {
		l.history = l.history[len(l.history)-l.HistorySize:]
	}
	return updates
}

// History returns up to limit most-recent history entries.
func (l *Learner) History(limit int) []HistoryEntry {
	if limit <= 0 {
		return nil
	}
	if limit > len(l.history) {
		limit = len(l.history)
	}
	return append([]HistoryEntry(nil), l.history[len(l.history)-limit:]...)
}

// Status summarizes the learner's known tasks, pending counts, and recent
// history.
func (l *Learner) Status() Status {
	tasks := make([]string, 0, len(l.aggregators))
	for task := range l.aggregators {
		tasks = append(tasks, task)
	}
	sort.Strings(tasks)
	pending := make(map[string]int, len(l.pendingCounts))
	for k, v := range l.pendingCounts {
		pending[k] = v
	}
	return Status{Tasks: tasks, Pending: pending, History: l.History(5)}
}

// RecentSamples returns up to limit most-recently enqueued samples.
func (l *Learner) RecentSamples(limit int) []Sample {
	if limit <= 0 {
		return nil
	}
	if limit > len(l.samples) {
		limit = len(l.samples)
	}
	return append([]Sample(nil), l.samples[len(l.samples)-limit:]...)
}
