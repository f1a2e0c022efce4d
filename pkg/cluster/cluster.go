// Package cluster defines the boundary to the coordination authority that
// fans broadcast removals out to every node's local block cache.
//
// The core treats removal as a single atomic instruction; the fan-out
// mechanics belong to the Remover implementation. Bus is the in-process
// implementation used for single-process deployments and tests.
package cluster

import (
	"context"
	"fmt"
	"sync"

	"github.com/xystevensun/spark-private/internal/logger"
	"github.com/xystevensun/spark-private/pkg/blockcache"
)

// Remover instructs every node in the cluster to drop its cached copy of
// a broadcast.
type Remover interface {
	// RemoveBroadcast removes id from all nodes' block caches. When
	// fromOrigin is true the origin's registry entry and backing file are
	// removed as well. When blocking is true the call waits for the
	// removal to complete and returns its error; otherwise the removal
	// proceeds in the background and failures are only logged.
	RemoveBroadcast(ctx context.Context, id int64, fromOrigin, blocking bool) error
}

// OriginHook removes a broadcast's registry entry and backing file on the
// origin node.
type OriginHook func(id int64) error

// Bus is an in-process Remover. Nodes register their block caches under a
// name; the origin additionally registers its registry-removal hook.
type Bus struct {
	mu     sync.RWMutex
	caches map[string]blockcache.Store
	origin OriginHook
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		caches: make(map[string]blockcache.Store),
	}
}

// RegisterNode adds a node's block cache to the fan-out set.
// Registering the same name twice replaces the previous store.
func (b *Bus) RegisterNode(name string, store blockcache.Store) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.caches[name] = store
}

// UnregisterNode removes a node from the fan-out set.
func (b *Bus) UnregisterNode(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.caches, name)
}

// SetOriginHook registers the origin's registry-removal hook.
func (b *Bus) SetOriginHook(hook OriginHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.origin = hook
}

// RemoveBroadcast implements Remover.
func (b *Bus) RemoveBroadcast(ctx context.Context, id int64, fromOrigin, blocking bool) error {
	if blocking {
		return b.remove(ctx, id, fromOrigin)
	}

	go func() {
		if err := b.remove(context.Background(), id, fromOrigin); err != nil {
			logger.Warn("background broadcast removal failed", "id", id, "error", err)
		}
	}()
	return nil
}

// remove drops id from every registered cache and, when requested, from
// the origin registry. It visits every node even after a failure and
// returns the first error.
func (b *Bus) remove(ctx context.Context, id int64, fromOrigin bool) error {
	b.mu.RLock()
	caches := make(map[string]blockcache.Store, len(b.caches))
	for name, store := range b.caches {
		caches[name] = store
	}
	origin := b.origin
	b.mu.RUnlock()

	var firstErr error
	for name, store := range caches {
		if err := store.Remove(ctx, id); err != nil {
			logger.Warn("failed to remove broadcast from node cache",
				"id", id, "node", name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("node %s: %w", name, err)
			}
		}
	}

	if fromOrigin && origin != nil {
		if err := origin(id); err != nil {
			logger.Warn("failed to remove broadcast from origin registry",
				"id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

var _ Remover = (*Bus)(nil)
