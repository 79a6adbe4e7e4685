package errors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	kerrors "github.com/leontov-kolibri/kolibri-x/internal/errors"
)

func TestIsMatchesWrappedKind(t *testing.T) {
	err := kerrors.Wrap("sandbox.Execute", kerrors.KindQuotaExceeded, "writer",
		&kerrors.QuotaExceeded{Resource: "wall_ms", Limit: 100, Used: 300})

	assert.True(t, kerrors.Is(err, kerrors.KindQuotaExceeded))
	assert.False(t, kerrors.Is(err, kerrors.KindSandboxTimeout))
	assert.False(t, kerrors.Is(errors.New("plain"), kerrors.KindQuotaExceeded))
}

func TestErrorMessageFormatting(t *testing.T) {
	withOpAndID := kerrors.Wrap("skills.Authorize", kerrors.KindPermissionMissing, "writer",
		&kerrors.PermissionMissing{Skill: "writer", Missing: []string{"net.read:whitelist"}})
	assert.Contains(t, withOpAndID.Error(), "skills.Authorize")
	assert.Contains(t, withOpAndID.Error(), "writer")

	plain := kerrors.New("graph.Verify", kerrors.KindGraphIntegrity, "conflicting facts")
	assert.Equal(t, "conflicting facts", plain.Error())
}

func TestUnwrapExposesUnderlyingCause(t *testing.T) {
	cause := &kerrors.PolicyViolation{Skill: "writer", Policy: "pii", Requirement: "deny"}
	err := kerrors.Wrap("skills.EnforcePolicy", kerrors.KindPolicyViolation, "writer", cause)

	var pv *kerrors.PolicyViolation
	assert.True(t, errors.As(err, &pv))
	assert.Equal(t, "pii", pv.Policy)
}

func TestCacheMissIsASentinel(t *testing.T) {
	wrapped := errors.Join(kerrors.CacheMiss)
	assert.ErrorIs(t, wrapped, kerrors.CacheMiss)
}
