package broadcast

import (
	"os"
	"sync"
	"time"

	"github.com/xystevensun/spark-private/internal/logger"
)

// RegistryEntry is the origin-side record of one published broadcast file.
type RegistryEntry struct {
	// ID is the broadcast identifier.
	ID int64

	// FilePath is the serialized file backing this broadcast.
	FilePath string

	// LastTouched is set once, at publish time. Reads do not refresh it,
	// so repeated fetches never extend an entry's lifetime.
	LastTouched time.Time
}

// FileRegistry tracks the serialized broadcast files created by the
// origin node. It backs the cleanup sweep and is owned exclusively by the
// origin process.
type FileRegistry struct {
	mu      sync.RWMutex
	entries map[int64]RegistryEntry
}

// NewFileRegistry creates an empty registry.
func NewFileRegistry() *FileRegistry {
	return &FileRegistry{
		entries: make(map[int64]RegistryEntry),
	}
}

// Register records a published file for id with the current time.
// Identifiers are issued uniquely, so an existing entry is never expected.
func (r *FileRegistry) Register(id int64, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = RegistryEntry{
		ID:          id,
		FilePath:    path,
		LastTouched: time.Now(),
	}
}

// Lookup returns the entry for id.
func (r *FileRegistry) Lookup(id int64) (RegistryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	return entry, ok
}

// Remove deletes the entry for id and returns it.
func (r *FileRegistry) Remove(id int64) (RegistryEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	return entry, ok
}

// Len returns the number of registered entries.
func (r *FileRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Cleanup removes every entry whose LastTouched time is strictly before
// cutoff and deletes its backing file. Deletion is best-effort: a missing
// file is fine, any other failure is logged and the sweep continues.
// Returns the number of entries removed.
func (r *FileRegistry) Cleanup(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, entry := range r.entries {
		if !entry.LastTouched.Before(cutoff) {
			continue
		}

		delete(r.entries, id)
		removed++
		deleteFile(entry.FilePath, id)
	}

	return removed
}

// deleteFile removes a backing file, swallowing failures. A single bad
// entry must never abort a sweep or a destroy.
func deleteFile(path string, id int64) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to delete broadcast file", "id", id, "path", path, "error", err)
	}
}
