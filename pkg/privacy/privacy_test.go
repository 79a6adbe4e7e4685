package privacy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leontov-kolibri/kolibri-x/pkg/privacy"
)

func TestGrantDenyOverwrite(t *testing.T) {
	op := privacy.New(nil, func() time.Time { return time.Unix(0, 0) })

	op.Grant("user-1", []string{"text", "pii"})
	assert.True(t, op.IsAllowed("user-1", "pii"))

	op.Deny("user-1", []string{"pii"})
	assert.False(t, op.IsAllowed("user-1", "pii"))
	assert.True(t, op.IsAllowed("user-1", "text"))
}

func TestPolicyLayerFallback(t *testing.T) {
	layers := []privacy.PolicyLayer{
		{Name: "default-deny", Scope: map[string]bool{"location": true}, DefaultAction: "deny"},
		{Name: "default-allow", Scope: map[string]bool{"text": true}, DefaultAction: "allow"},
	}
	op := privacy.New(layers, nil)

	assert.False(t, op.IsAllowed("fresh-user", "location"))
	assert.True(t, op.IsAllowed("fresh-user", "text"))
}

func TestEnforcePreservesOrder(t *testing.T) {
	op := privacy.New(nil, nil)
	op.Grant("u", []string{"a", "c"})

	out := op.Enforce("u", []string{"a", "b", "c"})
	assert.Equal(t, []string{"a", "c"}, out)
}

func TestRecordAccessIssuesProofsAndIncidents(t *testing.T) {
	op := privacy.New(nil, nil)
	op.Grant("u", []string{"text"})
	op.Deny("u", []string{"pii"})

	proofs := op.RecordAccess("writer", "u", []string{"text", "pii"})
	require.Len(t, proofs, 1)
	assert.Equal(t, "text", proofs[0].Tag)
	assert.NotEmpty(t, proofs[0].Proof)

	incidents := op.Incidents()
	require.Len(t, incidents, 1)
	assert.Equal(t, "pii", incidents[0].Tag)
	assert.Equal(t, "writer", incidents[0].Skill)
}

func TestProofIsDeterministic(t *testing.T) {
	op1 := privacy.New(nil, nil)
	op1.Grant("u", []string{"text"})
	p1 := op1.RecordAccess("s", "u", []string{"text"})

	op2 := privacy.New(nil, nil)
	op2.Grant("u", []string{"text"})
	p2 := op2.RecordAccess("s", "u", []string{"text"})

	require.Len(t, p1, 1)
	require.Len(t, p2, 1)
	assert.Equal(t, p1[0].Proof, p2[0].Proof)
}
