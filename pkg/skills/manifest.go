// Package skills implements the skill store (C3) — manifest validation,
// scope authorization, and policy enforcement — and the skill sandbox
// (C4) — isolated, quota-metered execution of registered skills.
package skills

import (
	"regexp"
	"strings"
)

var (
	permissionPattern = regexp.MustCompile(`^[a-z][a-z0-9_.-]*\.[a-z][a-z0-9_.-]*:[a-z0-9_.]+$`)
	versionPattern    = regexp.MustCompile(`^\d+\.\d+\.\d+([-+][0-9A-Za-z.-]+)?$`)
)

// Quota bounds a skill's resource consumption per invocation window.
// A zero field means "unbounded" for that resource.
type Quota struct {
	Invocations int64 `json:"invocations,omitempty"`
	CPUMs       int64 `json:"cpu_ms,omitempty"`
	WallMs      int64 `json:"wall_ms,omitempty"`
	RAMMb       int64 `json:"ram_mb,omitempty"`
	NetBytes    int64 `json:"net_bytes,omitempty"`
	FSBytes     int64 `json:"fs_bytes,omitempty"`
	FSOps       int64 `json:"fs_ops,omitempty"`
}

// Manifest describes a registrable skill: its declared inputs, required
// permission scopes, billing model, policy requirements, sandbox entry
// point, and optional resource quota.
type Manifest struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Inputs      []string          `json:"inputs"`
	Permissions []string          `json:"permissions"`
	Billing     string            `json:"billing"`
	Policy      map[string]string `json:"policy"`
	Entry       string            `json:"entry"`
	Quota       *Quota            `json:"quota,omitempty"`
}

// Validate applies every manifest-register rule from spec section 4.3.
// It returns the first violation found as a human-readable reason.
func (m *Manifest) Validate() (bool, string) {
	if m.Name == "" {
		return false, "missing name"
	}
	if m.Version == "" || !versionPattern.MatchString(m.Version) {
		return false, "invalid version"
	}
	if m.Billing == "" {
		return false, "missing billing"
	}
	for _, in := range m.Inputs {
		if strings.TrimSpace(in) == "" {
			return false, "empty input entry"
		}
	}
	for _, p := range m.Permissions {
		if strings.TrimSpace(p) == "" || !permissionPattern.MatchString(p) {
			return false, "invalid permission: " + p
		}
	}
	if m.Entry == "" {
		return false, "empty entry"
	}
	if strings.HasPrefix(m.Entry, "/") {
		return false, "absolute entry path"
	}
	if strings.Contains(m.Entry, "..") {
		return false, "entry path escapes module root"
	}
	if !strings.HasSuffix(m.Entry, ".py") {
		return false, "entry must be a .py-shaped module path"
	}
	for k, v := range m.Policy {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			return false, "non-string policy entry"
		}
	}
	return true, ""
}
