package skills

import (
	"sort"
	"strings"
	"sync"

	kerrors "github.com/leontov-kolibri/kolibri-x/internal/errors"
)

// AuditDecision is one entry in the store's ring buffer of authorization
// and policy decisions.
type AuditDecision struct {
	Skill   string
	Actor   string
	Outcome string // "allow" | "deny"
	Reason  string
}

// JournalSink is the narrow append contract the store journals decisions
// through. *journal.Journal's Append returns the appended entry, so
// pkg/runtime passes the journal in through a small adapter.
type JournalSink interface {
	Append(event string, payload map[string]interface{})
}

type noopSink struct{}

func (noopSink) Append(string, map[string]interface{}) {}

// Store holds registered skill manifests and enforces their authorization
// and policy rules on every execution attempt.
type Store struct {
	mu        sync.RWMutex
	manifests map[string]*Manifest
	audit     []AuditDecision
	auditCap  int
	journal   JournalSink
}

// NewStore builds an empty Store. auditCap bounds the ring buffer size
// (spec section 4.3 default is 512).
func NewStore(auditCap int, journal JournalSink) *Store {
	if auditCap <= 0 {
		auditCap = 512
	}
	if journal == nil {
		journal = noopSink{}
	}
	return &Store{manifests: map[string]*Manifest{}, auditCap: auditCap, journal: journal}
}

// Register validates and stores a manifest. Rejections are journaled as
// skill_manifest.rejected and returned as a ValidationError.
func (s *Store) Register(m Manifest) error {
	if ok, reason := m.Validate(); !ok {
		s.journal.Append("skill_manifest.rejected", map[string]interface{}{
			"skill":  m.Name,
			"reason": reason,
		})
		return kerrors.New("skills.Register", kerrors.KindValidation, reason)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	mm := m
	s.manifests[m.Name] = &mm
	return nil
}

// Get returns the manifest for name, if registered.
func (s *Store) Get(name string) (*Manifest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.manifests[name]
	return m, ok
}

// List returns every registered manifest, sorted by name.
func (s *Store) List() []*Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Manifest, 0, len(s.manifests))
	for _, m := range s.manifests {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) recordAudit(d AuditDecision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, d)
	if len(s.audit) > s.auditCap {
		s.audit = s.audit[len(s.audit)-s.auditCap:]
	}
}

// Audit returns a snapshot of the decision ring buffer.
func (s *Store) Audit() []AuditDecision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AuditDecision, len(s.audit))
	copy(out, s.audit)
	return out
}

// AuthorizeExecution checks that granted covers every permission the
// manifest requires. On success it journals an allow audit and returns the
// sorted required scopes; on failure it journals a deny audit and returns
// a *kerrors.Error wrapping a PermissionMissing.
func (s *Store) AuthorizeExecution(skill string, granted []string, actor string) ([]string, error) {
	m, ok := s.Get(skill)
	if !ok {
		return nil, kerrors.New("skills.AuthorizeExecution", kerrors.KindSkillUnknown, skill)
	}

	grantedSet := make(map[string]bool, len(granted))
	for _, g := range granted {
		grantedSet[g] = true
	}

	var missing []string
	for _, req := range m.Permissions {
		if !grantedSet[req] {
			missing = append(missing, req)
		}
	}
	sort.Strings(missing)

	required := append([]string(nil), m.Permissions...)
	sort.Strings(required)

	if len(missing) > 0 {
		s.recordAudit(AuditDecision{Skill: skill, Actor: actor, Outcome: "deny", Reason: strings.Join(missing, ",")})
		s.journal.Append("skill_authorization_denied", map[string]interface{}{
			"skill": skill, "actor": actor, "missing": missing,
		})
		return nil, &kerrors.Error{
			Op:   "skills.AuthorizeExecution",
			Kind: kerrors.KindPermissionMissing,
			ID:   skill,
			Err:  &kerrors.PermissionMissing{Skill: skill, Missing: missing},
		}
	}

	s.recordAudit(AuditDecision{Skill: skill, Actor: actor, Outcome: "allow"})
	s.journal.Append("skill_authorization_allowed", map[string]interface{}{
		"skill": skill, "actor": actor, "scopes": required,
	})
	return required, nil
}

// EnforcePolicy checks manifest.Policy rules against contextTags (spec
// section 4.3: deny/blocked/forbid when present, require/required when
// absent). Journals skill_policy_blocked on denial.
func (s *Store) EnforcePolicy(skill string, contextTags []string, actor string) error {
	m, ok := s.Get(skill)
	if !ok {
		return kerrors.New("skills.EnforcePolicy", kerrors.KindSkillUnknown, skill)
	}
	tags := make(map[string]bool, len(contextTags))
	for _, t := range contextTags {
		tags[t] = true
	}

	policies := make([]string, 0, len(m.Policy))
	for p := range m.Policy {
		policies = append(policies, p)
	}
	sort.Strings(policies)

	for _, policy := range policies {
		rule := strings.ToLower(m.Policy[policy])
		denyRule := rule == "deny" || rule == "blocked" || rule == "forbid"
		requireRule := rule == "require" || rule == "required"
		if denyRule && tags[policy] {
			s.journal.Append("skill_policy_blocked", map[string]interface{}{
				"skill": skill, "policy": policy, "rule": rule, "actor": actor,
			})
			return &kerrors.Error{
				Op: "skills.EnforcePolicy", Kind: kerrors.KindPolicyViolation, ID: skill,
				Err: &kerrors.PolicyViolation{Skill: skill, Policy: policy, Requirement: rule},
			}
		}
		if requireRule && !tags[policy] {
			s.journal.Append("skill_policy_blocked", map[string]interface{}{
				"skill": skill, "policy": policy, "rule": rule, "actor": actor,
			})
			return &kerrors.Error{
				Op: "skills.EnforcePolicy", Kind: kerrors.KindPolicyViolation, ID: skill,
				Err: &kerrors.PolicyViolation{Skill: skill, Policy: policy, Requirement: rule},
			}
		}
	}
	return nil
}

// Quota returns the manifest's quota, or a zero-value Quota (unbounded) if
// none was declared.
func (s *Store) Quota(skill string) Quota {
	m, ok := s.Get(skill)
	if !ok || m.Quota == nil {
		return Quota{}
	}
	return *m.Quota
}
