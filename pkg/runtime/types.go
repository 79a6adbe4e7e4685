// Package runtime implements the session-scoped runtime orchestrator
// (C14): it owns every other component (journal, privacy, skills, graph,
// caches, encoders, planner, personalizer, self-learner, workflows, IoT
// bridge, SLO tracker) and drives the twelve-stage per-request pipeline
// over them.
package runtime

import (
	"github.com/leontov-kolibri/kolibri-x/pkg/personalize"
	"github.com/leontov-kolibri/kolibri-x/pkg/planner"
	"github.com/leontov-kolibri/kolibri-x/pkg/rag"
	"github.com/leontov-kolibri/kolibri-x/pkg/slo"
)

// Outcome statuses for one executed plan step, per spec section 4.14/7.
const (
	StatusOK            = "ok"
	StatusPolicyBlocked = "policy_blocked"
	StatusQuotaBlocked  = "quota_blocked"
	StatusMissing       = "missing"
	StatusSkipped       = "skipped"
	StatusError         = "error"
)

// Request is one interaction turn submitted to the orchestrator.
type Request struct {
	UserID      string
	Goal        string
	Modalities  map[string]interface{}
	Hints       []string
	Signals     []personalize.Signal
	Empathy     personalize.Context
	DataTags    []string
	SkillScopes []string
	TopK        int
}

// Execution is the outcome of one plan step's attempted execution.
type Execution struct {
	StepID string                 `json:"step_id"`
	Skill  string                 `json:"skill"`
	Status string                 `json:"status"`
	Output map[string]interface{} `json:"output,omitempty"`
	Policy string                 `json:"policy,omitempty"`
	Reason string                 `json:"reason,omitempty"`
}

// Response is everything the orchestrator produces for one request.
type Response struct {
	Plan        planner.Plan
	Answer      rag.Answer
	Adjustments personalize.Modulation
	Executions  []Execution
	Reasoning   []ReasoningStep
	JournalTail []journalEntryView
	Cached      bool
	Metrics     map[string]slo.Report
}

// journalEntryView is the subset of journal.Entry the response surfaces,
// avoiding a hard dependency from this file on the journal package's
// wire shape beyond what callers need.
type journalEntryView struct {
	Index   int                    `json:"index"`
	Event   string                 `json:"event"`
	Payload map[string]interface{} `json:"payload"`
}

// cachedPayload is the JSON shape stored in the offline cache, restored
// verbatim on a repeat request.
type cachedPayload struct {
	Plan        planner.Plan
	Answer      rag.Answer
	Executions  []Execution
	Adjustments personalize.Modulation
}
