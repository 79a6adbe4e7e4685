package workflow_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leontov-kolibri/kolibri-x/pkg/workflow"
)

type fixedClock struct{ at time.Time }

func (f fixedClock) Now() time.Time { return f.at }

func TestCreateAssignsStepsAndID(t *testing.T) {
	m := workflow.NewManager(nil)
	wf := m.Create("draft pitch deck", []string{"outline", "write", "review"}, time.Time{}, nil, nil)
	require.NotEmpty(t, wf.ID)
	assert.Len(t, wf.Steps, 3)
	assert.Equal(t, "outline", wf.Steps[0].Description)
	assert.False(t, wf.HasDeadline())
}

func TestMarkStepCompletedUsesInjectedClock(t *testing.T) {
	completedAt := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	m := workflow.NewManager(fixedClock{at: completedAt})
	wf := m.Create("goal", []string{"a", "b"}, time.Time{}, nil, nil)

	ok := m.MarkStepCompleted(wf.ID, 0)
	require.True(t, ok)
	assert.True(t, wf.Steps[0].Completed)
	assert.Equal(t, completedAt, wf.Steps[0].CompletedAt)
	assert.False(t, wf.Steps[1].Completed)
}

func TestMarkStepCompletedInvalidIndexOrWorkflow(t *testing.T) {
	m := workflow.NewManager(nil)
	wf := m.Create("goal", []string{"a"}, time.Time{}, nil, nil)
	assert.False(t, m.MarkStepCompleted(wf.ID, 5))
	assert.False(t, m.MarkStepCompleted("missing", 0))
}

func TestEmitRemindersScenarioS6(t *testing.T) {
	m := workflow.NewManager(nil)
	deadline := time.Date(2025, 1, 3, 9, 0, 0, 0, time.UTC)
	wf := m.Create("ship release", nil, deadline, []workflow.ReminderRule{
		{Offset: 24 * time.Hour, Message: "deadline in 24h"},
	}, nil)

	at := time.Date(2025, 1, 3, 8, 0, 0, 0, time.UTC)
	reminders := m.EmitReminders(at)

	require.Len(t, reminders, 1)
	assert.Equal(t, wf.ID, reminders[0].WorkflowID)
	assert.Equal(t, time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC), reminders[0].ScheduledFor)
}

func TestEmitRemindersSortedByScheduledForThenWorkflowID(t *testing.T) {
	m := workflow.NewManager(nil)
	deadline := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	m.Create("first", nil, deadline, []workflow.ReminderRule{{Offset: time.Hour, Message: "m1"}}, nil)
	m.Create("second", nil, deadline, []workflow.ReminderRule{{Offset: 2 * time.Hour, Message: "m2"}}, nil)

	at := deadline
	reminders := m.EmitReminders(at)
	require.Len(t, reminders, 2)
	assert.True(t, reminders[0].ScheduledFor.Before(reminders[1].ScheduledFor))
}

func TestEmitRemindersSkipsWorkflowsWithoutDeadline(t *testing.T) {
	m := workflow.NewManager(nil)
	m.Create("no deadline", nil, time.Time{}, []workflow.ReminderRule{{Offset: time.Hour, Message: "x"}}, nil)
	assert.Empty(t, m.EmitReminders(time.Now()))
}

func TestOverdueWorkflowsReturnsPastDeadlineOnly(t *testing.T) {
	m := workflow.NewManager(nil)
	past := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	future := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	overdueWf := m.Create("late", nil, past, nil, nil)
	m.Create("on time", nil, future, nil, nil)
	m.Create("no deadline", nil, time.Time{}, nil, nil)

	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	overdue := m.OverdueWorkflows(at)

	require.Len(t, overdue, 1)
	assert.Equal(t, overdueWf.ID, overdue[0].ID)
}
