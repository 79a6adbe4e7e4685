// Package errors defines the Kolibri runtime's error taxonomy.
//
// An *Error carries a Kind that callers can test with Is or inspect after
// errors.As, and sentinel values cover the common cases so callers can
// also use errors.Is.
package errors

import (
	"errors"
	"fmt"
)

// Kind enumerates the runtime's error taxonomy (spec section 7).
type Kind string

const (
	KindPermissionMissing   Kind = "permission_missing"
	KindPolicyViolation     Kind = "policy_violation"
	KindQuotaExceeded       Kind = "quota_exceeded"
	KindSandboxTimeout      Kind = "sandbox_timeout"
	KindSandboxMemory       Kind = "sandbox_memory_exceeded"
	KindSandboxCrash        Kind = "sandbox_crash"
	KindProcessTerminated   Kind = "process_terminated"
	KindSkillUnknown        Kind = "skill_unknown"
	KindGraphIntegrity      Kind = "graph_integrity"
	KindCacheMiss           Kind = "cache_miss"
	KindValidation          Kind = "validation_error"
	KindConfirmationNeeded  Kind = "confirmation_required"
	KindPolicyDenied        Kind = "policy_denied"
)

// Error is a structured runtime error, following the teacher's
// Op/Kind/ID/Message/Err wrapper shape.
type Error struct {
	Op      string
	Kind    Kind
	ID      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a typed Error.
func New(op string, kind Kind, message string) *Error {
	return &Error{Op: op, Kind: kind, Message: message}
}

// Wrap builds a typed Error around an underlying cause.
func Wrap(op string, kind Kind, id string, err error) *Error {
	return &Error{Op: op, Kind: kind, ID: id, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// CacheMiss is a singleton sentinel: spec section 7 calls out that a cache
// miss is control flow, not a failure, so callers compare with errors.Is
// rather than inspecting a Kind-bearing *Error.
var CacheMiss = errors.New("cache miss")

// Sentinels for common not-found / state conditions, mirroring the
// teacher's errors.go sentinel block.
var (
	ErrSkillUnknown      = errors.New("unknown skill")
	ErrNodeUnknown       = errors.New("unknown graph node")
	ErrAlreadyStarted    = errors.New("session already started")
	ErrNotStarted        = errors.New("session not started")
	ErrInvalidManifest   = errors.New("invalid skill manifest")
)

// QuotaExceeded carries the breached resource, its limit, and the observed
// usage (spec section 4.4).
type QuotaExceeded struct {
	Resource string
	Limit    int64
	Used     int64
}

func (e *QuotaExceeded) Error() string {
	return fmt.Sprintf("quota exceeded: %s used=%d limit=%d", e.Resource, e.Used, e.Limit)
}

func (e *QuotaExceeded) Kind() Kind { return KindQuotaExceeded }

// PermissionMissing carries the scopes that were required but not granted.
type PermissionMissing struct {
	Skill    string
	Missing  []string
}

func (e *PermissionMissing) Error() string {
	return fmt.Sprintf("skill %q missing permissions: %v", e.Skill, e.Missing)
}

// PolicyViolation carries the policy tag and requirement that rejected an
// execution context.
type PolicyViolation struct {
	Skill       string
	Policy      string
	Requirement string
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("skill %q blocked by policy %q (%s)", e.Skill, e.Policy, e.Requirement)
}
