package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	kerrors "github.com/leontov-kolibri/kolibri-x/internal/errors"
)

type wireEntry struct {
	Index     int                    `json:"index"`
	Event     string                 `json:"event"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp string                 `json:"timestamp"`
	PrevHash  string                 `json:"prev_hash"`
	Hash      string                 `json:"hash"`
}

// Save writes every entry as JSONL, creating parent directories as needed.
// Best-effort per spec section 4.1: failures are returned, not panicked.
func (j *Journal) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return kerrors.Wrap("journal.Save", kerrors.KindValidation, path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return kerrors.Wrap("journal.Save", kerrors.KindValidation, path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()

	for _, e := range j.Entries() {
		we := wireEntry{
			Index:     e.Index,
			Event:     e.Event,
			Payload:   e.Payload,
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
			PrevHash:  e.PrevHash,
			Hash:      e.Hash,
		}
		raw, err := json.Marshal(we)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(raw, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// Load replaces the journal's entries with those read from path, verifying
// every entry's hash as it goes. A hash mismatch is a fatal, typed error —
// the journal is left unmodified on failure.
func (j *Journal) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return kerrors.Wrap("journal.Load", kerrors.KindValidation, path, err)
	}
	defer f.Close()

	var loaded []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var we wireEntry
		if err := json.Unmarshal(line, &we); err != nil {
			return kerrors.Wrap("journal.Load", kerrors.KindValidation, path, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, we.Timestamp)
		if err != nil {
			return kerrors.Wrap("journal.Load", kerrors.KindValidation, path, err)
		}
		expected := computeHash(we.Index, we.Event, we.Payload, ts, we.PrevHash)
		if expected != we.Hash {
			return &GraphIntegrityError{Index: we.Index}
		}
		loaded = append(loaded, Entry{
			Index:     we.Index,
			Event:     we.Event,
			Payload:   we.Payload,
			Timestamp: ts,
			PrevHash:  we.PrevHash,
			Hash:      we.Hash,
		})
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	j.mu.Lock()
	j.entries = loaded
	j.mu.Unlock()
	return nil
}
