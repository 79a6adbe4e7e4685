// Package journal implements the hash-chained action journal (C1): an
// append-only event log whose entries commit to their predecessor via a
// SHA-256 hash chain, so tampering with any entry is detectable on replay.
package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	kerrors "github.com/leontov-kolibri/kolibri-x/internal/errors"
)

var zeroHash = strings.Repeat("0", 64)

// Entry is a single hash-chained record.
type Entry struct {
	Index     int                    `json:"index"`
	Event     string                 `json:"event"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
	PrevHash  string                 `json:"prev_hash"`
	Hash      string                 `json:"hash"`
}

func computeHash(index int, event string, payload map[string]interface{}, ts time.Time, prevHash string) string {
	canonical := map[string]interface{}{
		"index":     index,
		"event":     event,
		"payload":   normalize(payload),
		"timestamp": ts.UTC().Format(time.RFC3339Nano),
		"prev_hash": prevHash,
	}
	raw := canonicalJSON(canonical)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// normalize deep-copies a value into JSON-friendly primitives with
// deterministically ordered maps and sets, matching the Python reference's
// `_canonical_payload`: maps become sorted-key maps, slices/sets become
// ordered slices, and time.Time becomes an ISO-8601 string.
func normalize(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[k] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	case []string:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

// canonicalJSON serializes value as JSON with recursively sorted map keys.
// encoding/json already sorts map[string]interface{} keys, so this is a
// thin wrapper kept for clarity at call sites and to centralize the one
// place canonicalization could silently drift.
func canonicalJSON(value interface{}) []byte {
	raw, err := json.Marshal(sortedValue(value))
	if err != nil {
		// Payloads are built internally from JSON-safe primitives; a
		// marshal failure here means a caller smuggled in something
		// unsupported (a channel, a func), which is a programming error.
		panic("journal: payload not JSON-serializable: " + err.Error())
	}
	return raw
}

func sortedValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := orderedMap{keys: keys, values: make(map[string]interface{}, len(v))}
		for _, k := range keys {
			out.values[k] = sortedValue(v[k])
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = sortedValue(item)
		}
		return out
	default:
		return v
	}
}

// orderedMap marshals as a JSON object preserving its recorded key order
// (already sorted), so nested maps serialize deterministically without
// depending on Go's incidental sorted-map-key marshaling behavior.
type orderedMap struct {
	keys   []string
	values map[string]interface{}
}

func (m orderedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range m.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, _ := json.Marshal(k)
		buf = append(buf, kb...)
		buf = append(buf, ':')
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, vb...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// NewEntry builds an Entry and computes its hash, exported so persistence
// code can reconstruct entries identically on load.
func NewEntry(index int, event string, payload map[string]interface{}, ts time.Time, prevHash string) Entry {
	return Entry{
		Index:     index,
		Event:     event,
		Payload:   payload,
		Timestamp: ts,
		PrevHash:  prevHash,
		Hash:      computeHash(index, event, payload, ts, prevHash),
	}
}

// Journal is the append-only, hash-chained event log.
type Journal struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time

	subMu       sync.Mutex
	subscribers []*subscriber
}

type subscriber struct {
	ch chan Entry
}

const subscriberQueueSize = 64

// New builds an empty Journal. An optional clock can be injected for tests.
func New(now func() time.Time) *Journal {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Journal{now: now}
}

// Append adds a new entry chained to the previous tail. Infallible per
// spec section 4.1 — journaling is local, in-memory state.
func (j *Journal) Append(event string, payload map[string]interface{}) Entry {
	j.mu.Lock()
	prev := zeroHash
	if len(j.entries) > 0 {
		prev = j.entries[len(j.entries)-1].Hash
	}
	entry := NewEntry(len(j.entries), event, payload, j.now(), prev)
	j.entries = append(j.entries, entry)
	j.mu.Unlock()

	j.broadcast(entry)
	return entry
}

// Entries returns a snapshot of every entry.
func (j *Journal) Entries() []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Tail returns the last k entries (or fewer if the journal is shorter).
func (j *Journal) Tail(k int) []Entry {
	if k <= 0 {
		return nil
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	if k > len(j.entries) {
		k = len(j.entries)
	}
	out := make([]Entry, k)
	copy(out, j.entries[len(j.entries)-k:])
	return out
}

// Verify walks the chain and confirms every prev_hash/hash link holds.
func (j *Journal) Verify() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	prev := zeroHash
	for _, e := range j.entries {
		if e.PrevHash != prev {
			return false
		}
		if computeHash(e.Index, e.Event, e.Payload, e.Timestamp, e.PrevHash) != e.Hash {
			return false
		}
		prev = e.Hash
	}
	return true
}

// Subscribe returns a channel that receives every future append. The
// channel has bounded capacity; a slow consumer has its oldest queued
// message dropped rather than blocking the writer (spec section 5.2).
func (j *Journal) Subscribe() <-chan Entry {
	sub := &subscriber{ch: make(chan Entry, subscriberQueueSize)}
	j.subMu.Lock()
	j.subscribers = append(j.subscribers, sub)
	j.subMu.Unlock()
	return sub.ch
}

func (j *Journal) broadcast(entry Entry) {
	j.subMu.Lock()
	defer j.subMu.Unlock()
	for _, sub := range j.subscribers {
		select {
		case sub.ch <- entry:
		default:
			// Drop the oldest queued message, then retry once.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- entry:
			default:
			}
		}
	}
}

// GraphIntegrityError reports a hash mismatch detected while loading a
// persisted journal.
type GraphIntegrityError struct {
	Index int
}

func (e *GraphIntegrityError) Error() string {
	err := kerrors.New("journal.Load", kerrors.KindGraphIntegrity, "hash mismatch at entry")
	err.ID = strconv.Itoa(e.Index)
	return err.Error()
}
