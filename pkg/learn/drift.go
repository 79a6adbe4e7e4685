package learn

// DriftTracker maintains an exponential moving average of per-task outcome
// scores, so a task whose recent samples skew toward failure can be
// flagged before it accumulates enough history to show up any other way.
type DriftTracker struct {
	Smoothing float64
	Threshold float64

	scores map[string]float64
	seen   map[string]bool
}

// NewDriftTracker builds a tracker. smoothing is clamped to (0,1] and
// threshold is the drift score at or above which a task is reported degraded.
func NewDriftTracker(smoothing, threshold float64) *DriftTracker {
	if smoothing <= 0 {
		smoothing = 0.2
	}
	if smoothing > 1 {
		smoothing = 1
	}
	return &DriftTracker{
		Smoothing: smoothing,
		Threshold: threshold,
		scores:    map[string]float64{},
		seen:      map[string]bool{},
	}
}

// outcomeScore maps a sample's metadata status to a [0,1] failure score:
// healthy outcomes score 0, skipped/noop score 0.1, anything else (or a
// missing status) scores 1, treating unknown outcomes as drift signal
// rather than silently ignoring them.
func outcomeScore(metadata map[string]string) float64 {
	switch metadata["status"] {
	case "ok", "cached", "success":
		return 0.0
	case "skipped", "noop":
		return 0.1
	default:
		return 1.0
	}
}

// Observe folds one sample's outcome into taskID's drift score.
func (d *DriftTracker) Observe(taskID string, metadata map[string]string) float64 {
	score := outcomeScore(metadata)
	if !d.seen[taskID] {
		d.scores[taskID] = score
		d.seen[taskID] = true
		return score
	}
	updated := (1-d.Smoothing)*d.scores[taskID] + d.Smoothing*score
	d.scores[taskID] = updated
	return updated
}

// Score returns taskID's current drift score and whether it has been
// observed at all.
func (d *DriftTracker) Score(taskID string) (float64, bool) {
	return d.scores[taskID], d.seen[taskID]
}

// Degraded returns the tasks whose drift score reaches or exceeds Threshold.
func (d *DriftTracker) Degraded() []string {
	var out []string
	for task, score := range d.scores {
		if score >= d.Threshold {
			out = append(out, task)
		}
	}
	return out
}

// Snapshot returns a copy of every tracked task's current score.
func (d *DriftTracker) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(d.scores))
	for k, v := range d.scores {
		out[k] = v
	}
	return out
}

// Restore replaces the tracker's score state wholesale.
func (d *DriftTracker) Restore(scores map[string]float64) {
	d.scores = map[string]float64{}
	d.seen = map[string]bool{}
	for k, v := range scores {
		d.scores[k] = v
		d.seen[k] = true
	}
}
