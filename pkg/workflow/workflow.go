// Package workflow tracks long-running, multi-step tasks with
// deadline-relative reminders and overdue detection.
package workflow

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Step is one unit of work within a workflow.
type Step struct {
	Description string
	Tool        string
	Completed   bool
	CompletedAt time.Time
}

// ReminderRule fires a message a fixed offset before a workflow's
// deadline.
type ReminderRule struct {
	Offset  time.Duration
	Message string
}

// Workflow is a goal decomposed into steps, with an optional deadline and
// reminder rules relative to it.
type Workflow struct {
	ID        string
	Goal      string
	Steps     []Step
	Deadline  time.Time
	Reminders []ReminderRule
	CreatedAt time.Time
	Metadata  map[string]string
}

// HasDeadline reports whether Deadline was set.
func (w *Workflow) HasDeadline() bool {
	return !w.Deadline.IsZero()
}

// Reminder is one emitted reminder event.
type Reminder struct {
	WorkflowID  string
	ScheduledFor time.Time
	Message     string
}

// Clock supplies the current time, so tests can inject a fixed instant
// instead of depending on wall-clock time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// Manager owns a set of workflows and an injected clock for deterministic
// step-completion timestamps.
type Manager struct {
	clock     Clock
	workflows map[string]*Workflow
}

// NewManager builds a Manager. A nil clock defaults to SystemClock.
func NewManager(clock Clock) *Manager {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Manager{clock: clock, workflows: map[string]*Workflow{}}
}

// Create registers a new workflow from a goal, step descriptions,
// optional deadline, and reminder rules, returning the created Workflow.
func (m *Manager) Create(goal string, stepDescriptions []string, deadline time.Time, reminders []ReminderRule, metadata map[string]string) *Workflow {
	steps := make([]Step, 0, len(stepDescriptions))
	for _, desc := range stepDescriptions {
		steps = append(steps, Step{Description: desc})
	}
	metaCopy := make(map[string]string, len(metadata))
	for k, v := range metadata {
		metaCopy[k] = v
	}
	wf := &Workflow{
		ID:        uuid.NewString(),
		Goal:      goal,
		Steps:     steps,
		Deadline:  deadline,
		Reminders: append([]ReminderRule(nil), reminders...),
		CreatedAt: m.clock.Now(),
		Metadata:  metaCopy,
	}
	m.workflows[wf.ID] = wf
	return wf
}

// Get returns the workflow with the given id, or nil.
func (m *Manager) Get(id string) *Workflow {
	return m.workflows[id]
}

// MarkStepCompleted marks the step at index as completed, recording the
// completion time from the manager's clock. Reports false if the
// workflow or step index doesn't exist.
func (m *Manager) MarkStepCompleted(id string, index int) bool {
	wf, ok := m.workflows[id]
	if !ok || index < 0 || index >= len(wf.Steps) {
		return false
	}
	wf.Steps[index].Completed = true
	wf.Steps[index].CompletedAt = m.clock.Now()
	return true
}

// EmitReminders returns every reminder rule across every workflow whose
// scheduled time (deadline - offset) is at or before `at`, sorted by
// (scheduled_for, workflow_id).
func (m *Manager) EmitReminders(at time.Time) []Reminder {
	var out []Reminder
	for _, wf := range m.workflows {
		if !wf.HasDeadline() {
			continue
		}
		for _, rule := range wf.Reminders {
			scheduledFor := wf.Deadline.Add(-rule.Offset)
			if !scheduledFor.After(at) {
				out = append(out, Reminder{WorkflowID: wf.ID, ScheduledFor: scheduledFor, Message: rule.Message})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledFor.Equal(out[j].ScheduledFor) {
			return out[i].ScheduledFor.Before(out[j].ScheduledFor)
		}
		return out[i].WorkflowID < out[j].WorkflowID
	})
	return out
}

// OverdueWorkflows returns every workflow whose deadline is strictly
// before `at`, sorted by id for deterministic output.
func (m *Manager) OverdueWorkflows(at time.Time) []*Workflow {
	var out []*Workflow
	for _, wf := range m.workflows {
		if wf.HasDeadline() && wf.Deadline.Before(at) {
			out = append(out, wf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
