package skills_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leontov-kolibri/kolibri-x/pkg/skills"
)

func validManifest() skills.Manifest {
	return skills.Manifest{
		Name:        "writer",
		Version:     "1.0.0",
		Inputs:      []string{"text"},
		Permissions: []string{"net.read:whitelist"},
		Billing:     "per_call",
		Policy:      map[string]string{"pii": "deny"},
		Entry:       "skills/writer.py",
	}
}

func TestValidateAcceptsWellFormedManifest(t *testing.T) {
	m := validManifest()
	ok, reason := m.Validate()
	assert.True(t, ok, reason)
}

func TestValidateRejectsBadVersion(t *testing.T) {
	m := validManifest()
	m.Version = "v1"
	ok, _ := m.Validate()
	assert.False(t, ok)
}

func TestValidateRejectsBadPermissionSyntax(t *testing.T) {
	m := validManifest()
	m.Permissions = []string{"not-a-scope"}
	ok, _ := m.Validate()
	assert.False(t, ok)
}

func TestValidateRejectsAbsoluteEntry(t *testing.T) {
	m := validManifest()
	m.Entry = "/etc/passwd.py"
	ok, _ := m.Validate()
	assert.False(t, ok)
}

func TestValidateRejectsParentTraversal(t *testing.T) {
	m := validManifest()
	m.Entry = "../escape.py"
	ok, _ := m.Validate()
	assert.False(t, ok)
}

func TestValidateRejectsNonPySuffix(t *testing.T) {
	m := validManifest()
	m.Entry = "skills/writer.sh"
	ok, _ := m.Validate()
	assert.False(t, ok)
}

func TestValidateRejectsMissingName(t *testing.T) {
	m := validManifest()
	m.Name = ""
	ok, _ := m.Validate()
	assert.False(t, ok)
}
