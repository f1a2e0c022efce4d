// Package blockcache provides the node-local block cache used to avoid
// re-fetching broadcast values.
//
// Every node owns its cache independently; contents are never reported to
// any coordinator. Cluster-wide removal is handled above this package.
package blockcache

import (
	"context"
	"errors"
)

// Common errors returned by Store implementations.
var (
	// ErrNotFound is returned when a requested entry doesn't exist.
	ErrNotFound = errors.New("cache entry not found")

	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("cache store is closed")
)

// Tier is a storage-tier hint for cached entries.
type Tier int

const (
	// TierMemoryOnly keeps the entry in memory only.
	TierMemoryOnly Tier = iota

	// TierMemoryAndDisk allows the entry to spill to disk.
	TierMemoryAndDisk
)

func (t Tier) String() string {
	switch t {
	case TierMemoryOnly:
		return "memory"
	case TierMemoryAndDisk:
		return "memory_and_disk"
	default:
		return "unknown"
	}
}

// Store is the node-local cache for serialized broadcast payloads,
// keyed by broadcast identifier.
//
// Implementations must be safe for concurrent use. Operations on
// different identifiers should not block each other.
type Store interface {
	// Put stores data under id with the given tier hint.
	// An existing entry for id is replaced.
	Put(ctx context.Context, id int64, data []byte, tier Tier) error

	// Get returns the data cached under id.
	// Returns ErrNotFound if no entry exists.
	Get(ctx context.Context, id int64) ([]byte, error)

	// Remove deletes the entry for id. Removing a missing entry is not an
	// error.
	Remove(ctx context.Context, id int64) error

	// Close releases any resources held by the store.
	Close() error
}
