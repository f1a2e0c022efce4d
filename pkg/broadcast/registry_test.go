package broadcast

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookup(t *testing.T) {
	r := NewFileRegistry()

	before := time.Now()
	r.Register(1, "/tmp/broadcast_1")

	entry, ok := r.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, int64(1), entry.ID)
	assert.Equal(t, "/tmp/broadcast_1", entry.FilePath)
	assert.False(t, entry.LastTouched.Before(before))

	_, ok = r.Lookup(2)
	assert.False(t, ok)
}

func TestRemoveReturnsEntry(t *testing.T) {
	r := NewFileRegistry()
	r.Register(1, "/tmp/broadcast_1")

	entry, ok := r.Remove(1)
	require.True(t, ok)
	assert.Equal(t, "/tmp/broadcast_1", entry.FilePath)
	assert.Equal(t, 0, r.Len())

	_, ok = r.Remove(1)
	assert.False(t, ok)
}

func TestCleanupRemovesOnlyEntriesBeforeCutoff(t *testing.T) {
	dir := t.TempDir()
	r := NewFileRegistry()

	oldPath := filepath.Join(dir, "broadcast_1")
	require.NoError(t, os.WriteFile(oldPath, []byte("old"), 0o600))
	r.Register(1, oldPath)

	cutoff := time.Now().Add(time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	freshPath := filepath.Join(dir, "broadcast_2")
	require.NoError(t, os.WriteFile(freshPath, []byte("fresh"), 0o600))
	r.Register(2, freshPath)

	removed := r.Cleanup(cutoff)
	assert.Equal(t, 1, removed)

	_, ok := r.Lookup(1)
	assert.False(t, ok)
	_, ok = r.Lookup(2)
	assert.True(t, ok)

	_, err := os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(freshPath)
	assert.NoError(t, err)
}

func TestCleanupEntryAtCutoffSurvives(t *testing.T) {
	r := NewFileRegistry()
	r.Register(1, filepath.Join(t.TempDir(), "broadcast_1"))

	entry, ok := r.Lookup(1)
	require.True(t, ok)

	// An entry touched exactly at the cutoff is not strictly before it.
	removed := r.Cleanup(entry.LastTouched)
	assert.Equal(t, 0, removed)
	assert.Equal(t, 1, r.Len())
}

func TestCleanupToleratesMissingFile(t *testing.T) {
	r := NewFileRegistry()
	r.Register(1, filepath.Join(t.TempDir(), "does-not-exist"))

	time.Sleep(time.Millisecond)
	removed := r.Cleanup(time.Now())
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, r.Len())
}

func TestCleanupEmptyRegistry(t *testing.T) {
	r := NewFileRegistry()
	assert.Equal(t, 0, r.Cleanup(time.Now()))
}
