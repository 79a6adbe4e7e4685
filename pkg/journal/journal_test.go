package journal_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leontov-kolibri/kolibri-x/pkg/journal"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAppendChainsHashes(t *testing.T) {
	j := journal.New(fixedClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))

	e0 := j.Append("session_started", map[string]interface{}{"id": "s1"})
	e1 := j.Append("privacy", map[string]interface{}{"allowed": []string{"text"}})

	assert.Equal(t, 0, e0.Index)
	assert.Equal(t, 1, e1.Index)
	assert.Equal(t, e0.Hash, e1.PrevHash)
	assert.True(t, j.Verify())
}

func TestVerifyDetectsTamper(t *testing.T) {
	j := journal.New(fixedClock(time.Unix(0, 0)))
	j.Append("a", map[string]interface{}{})
	j.Append("b", map[string]interface{}{})

	entries := j.Entries()
	require.Len(t, entries, 2)

	tampered := journal.New(fixedClock(time.Unix(0, 0)))
	for _, e := range entries {
		tampered.Append(e.Event, e.Payload)
	}
	assert.True(t, tampered.Verify())

	// Entries copies the entry structs but shares their payload maps, so
	// editing one in place changes the recorded payload without its hash.
	entries[0].Payload["forged"] = true
	assert.False(t, j.Verify())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "journal.jsonl")

	j := journal.New(nil)
	j.Append("session_started", map[string]interface{}{"id": "s1"})
	// JSON numbers load back as float64, so the payload uses one up front.
	j.Append("plan", map[string]interface{}{"steps": 3.0})

	require.NoError(t, j.Save(path))

	loaded := journal.New(nil)
	require.NoError(t, loaded.Load(path))

	assert.True(t, loaded.Verify())
	assert.Equal(t, j.Entries(), loaded.Entries())
}

func TestLoadRejectsTamperedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.jsonl")

	j := journal.New(nil)
	j.Append("session_started", map[string]interface{}{"id": "s1"})
	require.NoError(t, j.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := []byte(string(raw)[:len(raw)-2] + "x\n")
	require.NoError(t, os.WriteFile(path, tampered, 0o644))

	loaded := journal.New(nil)
	err = loaded.Load(path)
	assert.Error(t, err)
}

func TestTail(t *testing.T) {
	j := journal.New(nil)
	for i := 0; i < 5; i++ {
		j.Append("evt", map[string]interface{}{"i": i})
	}
	tail := j.Tail(2)
	require.Len(t, tail, 2)
	assert.Equal(t, 3, tail[0].Index)
	assert.Equal(t, 4, tail[1].Index)
	assert.Empty(t, j.Tail(0))
}

func TestSubscribeDropsOldestOnOverflow(t *testing.T) {
	j := journal.New(nil)
	ch := j.Subscribe()

	for i := 0; i < 200; i++ {
		j.Append("evt", map[string]interface{}{"i": i})
	}

	// The channel should not block the writer; with a 64-entry queue and
	// no reader, the oldest entries are dropped and the first one still
	// queued is index 200-64.
	select {
	case e := <-ch:
		assert.Equal(t, 200-64, e.Index)
	default:
		t.Fatal("expected at least one buffered entry")
	}
}
