// Package privacy implements the per-user consent operator (C2): grant/deny
// bookkeeping, ordered policy layers, and access proofs/incidents for
// every data-tag access decision the orchestrator makes on a user's behalf.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"
)

// ConsentRecord is a user's current allow/deny state.
type ConsentRecord struct {
	UserID    string
	Allowed   map[string]bool
	Denied    map[string]bool
	Proofs    map[string]string
	UpdatedAt time.Time
}

// PolicyLayer is a fallback rule applied when a tag has no explicit
// grant/deny: its default_action decides for every tag in Scope.
type PolicyLayer struct {
	Name          string
	Scope         map[string]bool
	DefaultAction string // "allow" or "deny"
}

// AccessProof is an opaque, deterministic receipt that a tag access was
// permitted.
type AccessProof struct {
	UserID string
	Tag    string
	Action string
	Layer  string
	Proof  string
}

// SecurityIncident records a denied access attempt.
type SecurityIncident struct {
	Skill     string
	UserID    string
	Tag       string
	At        time.Time
}

// Operator is the privacy gate every request passes through first.
type Operator struct {
	mu      sync.RWMutex
	users   map[string]*ConsentRecord
	layers  []PolicyLayer
	now     func() time.Time

	incidents []SecurityIncident
}

// New builds an Operator with the given ordered policy layers.
func New(layers []PolicyLayer, now func() time.Time) *Operator {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Operator{
		users:  make(map[string]*ConsentRecord),
		layers: layers,
		now:    now,
	}
}

func (o *Operator) record(user string) *ConsentRecord {
	r, ok := o.users[user]
	if !ok {
		r = &ConsentRecord{
			UserID:  user,
			Allowed: map[string]bool{},
			Denied:  map[string]bool{},
			Proofs:  map[string]string{},
		}
		o.users[user] = r
	}
	return r
}

// Grant allows the given tags for user, overwriting any prior denial —
// later calls win per tag (spec section 4.2).
func (o *Operator) Grant(user string, tags []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r := o.record(user)
	for _, t := range tags {
		r.Allowed[t] = true
		delete(r.Denied, t)
	}
	r.UpdatedAt = o.now()
}

// Deny forbids the given tags for user, overwriting any prior grant.
func (o *Operator) Deny(user string, tags []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r := o.record(user)
	for _, t := range tags {
		r.Denied[t] = true
		delete(r.Allowed, t)
	}
	r.UpdatedAt = o.now()
}

// IsAllowed reports whether tag is currently allowed for user, consulting
// explicit grants/denials first and falling back to the first matching
// policy layer's default action.
func (o *Operator) IsAllowed(user, tag string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.isAllowedLocked(user, tag)
}

func (o *Operator) isAllowedLocked(user, tag string) bool {
	if r, ok := o.users[user]; ok {
		if r.Allowed[tag] {
			return true
		}
		if r.Denied[tag] {
			return false
		}
	}
	for _, layer := range o.layers {
		if layer.Scope[tag] {
			return layer.DefaultAction == "allow"
		}
	}
	return false
}

func (o *Operator) layerFor(tag string) string {
	for _, layer := range o.layers {
		if layer.Scope[tag] {
			return layer.Name
		}
	}
	return ""
}

// Enforce filters tags down to those allowed for user, preserving input
// order.
func (o *Operator) Enforce(user string, tags []string) []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if o.isAllowedLocked(user, t) {
			out = append(out, t)
		}
	}
	return out
}

// proof computes a deterministic opaque hex receipt for (user, tag,
// action, layer).
func proof(user, tag, action, layer string) string {
	h := sha256.Sum256([]byte(user + "|" + tag + "|" + action + "|" + layer))
	return hex.EncodeToString(h[:])
}

// RecordAccess issues AccessProofs for every allowed tag and records a
// SecurityIncident for every denied tag. Returns the proofs for allowed
// tags, sorted by tag for determinism.
func (o *Operator) RecordAccess(skill, user string, tags []string) []AccessProof {
	o.mu.Lock()
	defer o.mu.Unlock()

	r := o.record(user)
	var proofs []AccessProof
	for _, t := range tags {
		allowed := o.isAllowedLocked(user, t)
		layer := o.layerFor(t)
		if allowed {
			p := proof(user, t, "allow", layer)
			r.Proofs[t] = p
			proofs = append(proofs, AccessProof{UserID: user, Tag: t, Action: "allow", Layer: layer, Proof: p})
		} else {
			o.incidents = append(o.incidents, SecurityIncident{Skill: skill, UserID: user, Tag: t, At: o.now()})
		}
	}
	sort.Slice(proofs, func(i, j int) bool { return proofs[i].Tag < proofs[j].Tag })
	return proofs
}

// Incidents returns every recorded SecurityIncident.
func (o *Operator) Incidents() []SecurityIncident {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]SecurityIncident, len(o.incidents))
	copy(out, o.incidents)
	return out
}

// Consent returns a copy of the user's current ConsentRecord, or nil if
// the user has no recorded consent yet.
func (o *Operator) Consent(user string) *ConsentRecord {
	o.mu.RLock()
	defer o.mu.RUnlock()
	r, ok := o.users[user]
	if !ok {
		return nil
	}
	cp := *r
	cp.Allowed = copySet(r.Allowed)
	cp.Denied = copySet(r.Denied)
	cp.Proofs = make(map[string]string, len(r.Proofs))
	for k, v := range r.Proofs {
		cp.Proofs[k] = v
	}
	return &cp
}

func copySet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
