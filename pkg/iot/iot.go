// Package iot bridges runtime decisions to device actions, enforcing
// allowlist/confirmation policy, per-session and per-batch limits, and an
// offline queue for commands issued while a device is unreachable.
package iot

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// JournalSink is the narrow append contract outcomes are emitted
// through. *journal.Journal's Append returns the appended entry, so
// pkg/runtime passes the journal in through a small adapter.
type JournalSink interface {
	Append(event string, payload map[string]interface{})
}

type noopSink struct{}

func (noopSink) Append(string, map[string]interface{}) {}

// SensorHub mirrors every executed command under a deterministic signal
// name, so device state stays observable without a round trip to the
// device itself.
type SensorHub interface {
	Mirror(signal string, payload map[string]interface{})
}

type noopHub struct{}

func (noopHub) Mirror(string, map[string]interface{}) {}

// Command is a single device action requested by the runtime.
type Command struct {
	DeviceID   string
	Action     string
	Parameters map[string]interface{}
	Safe       bool
}

// signature identifies a command by device, action, and sorted parameter
// key=value pairs, for offline dedup.
func (c Command) signature() string {
	keys := make([]string, 0, len(c.Parameters))
	for k := range c.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, c.Parameters[k]))
	}
	return c.DeviceID + "|" + c.Action + "|" + strings.Join(parts, ",")
}

// Policy is the capability policy governing which actions a device may
// receive and how many a session may issue.
type Policy struct {
	Allowlist            map[string][]string
	MaxActionsPerSession int
	MaxBatchSize         int
	MaxDeferredActions   int
}

// IsAllowed reports whether action is permitted for deviceID.
func (p Policy) IsAllowed(deviceID, action string) bool {
	for _, allowed := range p.Allowlist[deviceID] {
		if allowed == action {
			return true
		}
	}
	return false
}

// Ack is the deterministic acknowledgement returned for an executed
// command.
type Ack struct {
	DeviceID   string
	Action     string
	Parameters map[string]interface{}
	Status     string
	SessionID  string
	Count      int
}

type deferredCommand struct {
	sessionID   string
	command     Command
	availableAt time.Time
}

// Bridge validates, journals, and dispatches IoT commands.
type Bridge struct {
	Policy  Policy
	journal JournalSink
	hub     SensorHub

	sessionCounts map[string]int
	deferred      []deferredCommand
}

// NewBridge builds a Bridge. A nil journal/hub falls back to a no-op.
func NewBridge(policy Policy, journal JournalSink, hub SensorHub) *Bridge {
	if journal == nil {
		journal = noopSink{}
	}
	if hub == nil {
		hub = noopHub{}
	}
	return &Bridge{Policy: policy, journal: journal, hub: hub, sessionCounts: map[string]int{}}
}

func signalName(cmd Command) string {
	return fmt.Sprintf("iot.%s.%s", cmd.DeviceID, cmd.Action)
}

func commandPayload(sessionID string, cmd Command) map[string]interface{} {
	return map[string]interface{}{
		"session_id": sessionID,
		"device_id":  cmd.DeviceID,
		"action":     cmd.Action,
		"parameters": cmd.Parameters,
	}
}

// Dispatch validates and executes a single command. confirmer is
// consulted when the command isn't marked safe; a nil confirmer always
// denies an unsafe command.
func (b *Bridge) Dispatch(sessionID string, cmd Command, confirmer func(Command) bool) (Ack, error) {
	if !b.Policy.IsAllowed(cmd.DeviceID, cmd.Action) {
		b.journal.Append("iot_denied", commandPayload(sessionID, cmd))
		return Ack{}, fmt.Errorf("action %s not allowed for device %s", cmd.Action, cmd.DeviceID)
	}

	current := b.sessionCounts[sessionID]
	if current+1 > b.Policy.MaxActionsPerSession {
		b.journal.Append("iot_rate_limited", commandPayload(sessionID, cmd))
		return Ack{}, fmt.Errorf("IoT command limit exceeded for session %s", sessionID)
	}

	if !cmd.Safe {
		if confirmer == nil || !confirmer(cmd) {
			b.journal.Append("iot_unconfirmed", commandPayload(sessionID, cmd))
			return Ack{}, fmt.Errorf("command requires confirmation")
		}
	}

	count := current + 1
	b.sessionCounts[sessionID] = count

	ack := Ack{DeviceID: cmd.DeviceID, Action: cmd.Action, Parameters: cmd.Parameters, Status: "executed", SessionID: sessionID, Count: count}
	payload := commandPayload(sessionID, cmd)
	payload["status"] = ack.Status
	payload["count"] = count
	b.journal.Append("iot_executed", payload)
	b.hub.Mirror(signalName(cmd), payload)
	return ack, nil
}

// DispatchBatch dispatches every command in commands, enforcing
// MaxBatchSize up front. It stops at the first failing command and
// returns the acks gathered so far alongside the error.
func (b *Bridge) DispatchBatch(sessionID string, commands []Command, confirmer func(Command) bool) ([]Ack, error) {
	if len(commands) > b.Policy.MaxBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds max batch size %d", len(commands), b.Policy.MaxBatchSize)
	}
	acks := make([]Ack, 0, len(commands))
	for _, cmd := range commands {
		ack, err := b.Dispatch(sessionID, cmd, confirmer)
		if err != nil {
			return acks, err
		}
		acks = append(acks, ack)
	}
	return acks, nil
}

// Defer queues a command for later release, e.g. because its target
// device is currently offline.
func (b *Bridge) Defer(sessionID string, cmd Command, availableAt time.Time) error {
	if len(b.deferred) >= b.Policy.MaxDeferredActions {
		return fmt.Errorf("deferred action queue full (max %d)", b.Policy.MaxDeferredActions)
	}
	b.deferred = append(b.deferred, deferredCommand{sessionID: sessionID, command: cmd, availableAt: availableAt})
	return nil
}

// ReleaseDelayed dispatches every deferred command whose availability
// time is at or before upto, in ascending timestamp order, and removes
// them from the queue.
func (b *Bridge) ReleaseDelayed(upto time.Time, confirmer func(Command) bool) []Ack {
	ready := make([]deferredCommand, 0, len(b.deferred))
	remaining := make([]deferredCommand, 0, len(b.deferred))
	for _, d := range b.deferred {
		if !d.availableAt.After(upto) {
			ready = append(ready, d)
		} else {
			remaining = append(remaining, d)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].availableAt.Before(ready[j].availableAt) })
	b.deferred = remaining

	acks := make([]Ack, 0, len(ready))
	for _, d := range ready {
		if ack, err := b.Dispatch(d.sessionID, d.command, confirmer); err == nil {
			acks = append(acks, ack)
		}
	}
	return acks
}

// MergeAfterOffline combines the currently deferred commands for session
// with incoming ones arriving once connectivity resumes, dedupes by
// signature, dispatches the survivors, and clears the session's deferred
// entries.
func (b *Bridge) MergeAfterOffline(sessionID string, incoming []Command, confirmer func(Command) bool) []Ack {
	seen := map[string]bool{}
	var merged []Command

	remaining := make([]deferredCommand, 0, len(b.deferred))
	for _, d := range b.deferred {
		if d.sessionID != sessionID {
			remaining = append(remaining, d)
			continue
		}
		sig := d.command.signature()
		if !seen[sig] {
			seen[sig] = true
			merged = append(merged, d.command)
		}
	}
	b.deferred = remaining

	for _, cmd := range incoming {
		sig := cmd.signature()
		if !seen[sig] {
			seen[sig] = true
			merged = append(merged, cmd)
		}
	}

	acks := make([]Ack, 0, len(merged))
	for _, cmd := range merged {
		if ack, err := b.Dispatch(sessionID, cmd, confirmer); err == nil {
			acks = append(acks, ack)
		}
	}
	return acks
}

// ResetSession clears a session's action counter.
func (b *Bridge) ResetSession(sessionID string) {
	delete(b.sessionCounts, sessionID)
}
