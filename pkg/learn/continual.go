package learn

import "sort"

// ContinualLearner blends newly-trained gradients into per-task weight
// state with an elastic-consolidation factor: consolidation closer to 1
// favors the new gradient, closer to 0 retains prior weights.
type ContinualLearner struct {
	Consolidation float64

	weights map[string]map[string]float64
}

// NewContinualLearner builds a learner with the given consolidation
// factor.
func NewContinualLearner(consolidation float64) *ContinualLearner {
	return &ContinualLearner{Consolidation: consolidation, weights: map[string]map[string]float64{}}
}

// Train blends gradients into task's weight state and returns the updated
// weights for just the keys present in gradients.
func (c *ContinualLearner) Train(taskID string, gradients map[string]float64) map[string]float64 {
	state, ok := c.weights[taskID]
	if !ok {
		state = map[string]float64{}
		c.weights[taskID] = state
	}
	updated := make(map[string]float64, len(gradients))
	for name, gradient := range gradients {
		previous := state[name]
		newValue := (1.0-c.Consolidation)*previous + c.Consolidation*gradient
		state[name] = newValue
		updated[name] = newValue
	}
	return updated
}

// Snapshot returns a deep copy of every task's current weight state, with
// tasks listed in sorted order for deterministic serialization.
func (c *ContinualLearner) Snapshot() (tasks []string, weights map[string]map[string]float64) {
	weights = make(map[string]map[string]float64, len(c.weights))
	for task, state := range c.weights {
		tasks = append(tasks, task)
		cp := make(map[string]float64, len(state))
		for k, v := range state {
			cp[k] = v
		}
		weights[task] = cp
	}
	sort.Strings(tasks)
	return tasks, weights
}

// Restore replaces the learner's weight state wholesale, for Learner.Load.
func (c *ContinualLearner) Restore(weights map[string]map[string]float64) {
	c.weights = map[string]map[string]float64{}
	for task, state := range weights {
		cp := make(map[string]float64, len(state))
		for k, v := range state {
			cp[k] = v
		}
		c.weights[task] = cp
	}
}
