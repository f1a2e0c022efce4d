package broadcast

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xystevensun/spark-private/internal/logger"
	"github.com/xystevensun/spark-private/pkg/blockcache"
)

// State is the lifecycle state of a broadcast value.
type State int32

const (
	StateCreated State = iota
	StateCachedLocally
	StatePublishedRemotely
	StateUnpersisted
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateCachedLocally:
		return "cached_locally"
	case StatePublishedRemotely:
		return "published_remotely"
	case StateUnpersisted:
		return "unpersisted"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Broadcast is a handle to one distributed immutable value.
//
// The payload is held in memory only while referenced; a handle without a
// payload (a fresh worker process, or after the payload was dropped)
// re-resolves it through the local block cache and, on miss, the remote
// fetch path. Exactly one broadcast is ever published per identifier.
type Broadcast struct {
	id        int64
	localOnly bool
	m         *Manager

	mu         sync.Mutex
	state      State
	payload    any
	hasPayload bool
}

// New creates and publishes a broadcast value.
//
// The value is serialized once, cached in the node-local block cache, and,
// unless localOnly is set, persisted to the file registry and made
// fetchable through the transport endpoint. A publication failure fails
// construction; no registry entry is left behind, though the local cache
// entry from the first transition may linger and should be cleaned by the
// caller.
func (m *Manager) New(ctx context.Context, value any, localOnly bool) (*Broadcast, error) {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return nil, ErrNotInitialized
	}
	isOrigin := m.isOrigin
	serializer := m.serializer
	ps := publishState{
		dir:        m.dir,
		registry:   m.registry,
		compressor: m.compressor,
		bufferSize: m.bufferSize,
	}
	m.mu.Unlock()

	if !localOnly && !isOrigin {
		return nil, ErrNotOrigin
	}
	if !localOnly && ps.registry == nil {
		return nil, ErrNotInitialized
	}

	id := m.NewID()
	b := &Broadcast{
		id:         id,
		localOnly:  localOnly,
		m:          m,
		state:      StateCreated,
		payload:    value,
		hasPayload: true,
	}

	var buf bytes.Buffer
	if err := serializer.Encode(&buf, value); err != nil {
		return nil, fmt.Errorf("failed to serialize broadcast %d: %w", id, err)
	}

	// The cache entry is a local optimization, never cluster metadata.
	if err := m.opts.Cache.Put(ctx, id, buf.Bytes(), blockcache.TierMemoryAndDisk); err != nil {
		return nil, fmt.Errorf("failed to cache broadcast %d: %w", id, err)
	}
	b.state = StateCachedLocally

	if !localOnly {
		if err := m.writeBroadcastFile(id, buf.Bytes(), ps); err != nil {
			return nil, err
		}
		b.state = StatePublishedRemotely
		m.opts.Metrics.ObservePublish()
		logger.Debug("broadcast published", "id", id, "bytes", buf.Len())
	}

	return b, nil
}

// Handle returns a payload-less handle for an already-published
// identifier, as held by a worker that has not dereferenced it yet.
func (m *Manager) Handle(id int64) *Broadcast {
	return &Broadcast{
		id:    id,
		m:     m,
		state: StateCreated,
	}
}

// ID returns the broadcast identifier.
func (b *Broadcast) ID() int64 {
	return b.id
}

// State returns the current lifecycle state.
func (b *Broadcast) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Value resolves the broadcast payload.
//
// Resolution order: the in-memory payload if held, then the local block
// cache, then a remote fetch that re-populates the cache. A fetch failure
// is surfaced to the caller; it is never masked as an empty value. After
// Destroy, Value fails with ErrNotFound.
func (b *Broadcast) Value(ctx context.Context) (any, error) {
	b.mu.Lock()
	if b.state == StateDestroyed {
		b.mu.Unlock()
		return nil, fmt.Errorf("broadcast %d: %w", b.id, ErrNotFound)
	}
	if b.hasPayload {
		v := b.payload
		b.mu.Unlock()
		return v, nil
	}
	b.mu.Unlock()

	data, err := b.m.opts.Cache.Get(ctx, b.id)
	switch {
	case err == nil:
		b.m.opts.Metrics.ObserveFetch("cache_hit")
	case errors.Is(err, blockcache.ErrNotFound):
		data, err = b.m.fetch(ctx, b.id)
		if err != nil {
			b.m.opts.Metrics.ObserveFetch("error")
			return nil, err
		}
		// Local cache fill is fire-and-forget; a full or failing cache
		// must not fail a successful fetch.
		if putErr := b.m.opts.Cache.Put(ctx, b.id, data, blockcache.TierMemoryAndDisk); putErr != nil {
			logger.Warn("failed to cache fetched broadcast", "id", b.id, "error", putErr)
		}
		b.m.opts.Metrics.ObserveFetch("remote")
	default:
		return nil, fmt.Errorf("failed to read cached broadcast %d: %w", b.id, err)
	}

	value, err := b.m.decodePayload(data)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize broadcast %d: %w", b.id, err)
	}

	b.mu.Lock()
	if b.state == StateDestroyed {
		// Destroyed while resolving; do not resurrect.
		b.mu.Unlock()
		return nil, fmt.Errorf("broadcast %d: %w", b.id, ErrNotFound)
	}
	b.payload = value
	b.hasPayload = true
	if b.state == StateCreated || b.state == StateUnpersisted {
		b.state = StateCachedLocally
	}
	b.mu.Unlock()

	return value, nil
}

// Unpersist drops the broadcast from every node's block cache but leaves
// the origin's registry file intact, so late-arriving workers can still
// fetch and re-cache. Idempotent. A failed blocking fan-out rolls the
// state back so a retry re-attempts the cluster removal.
func (b *Broadcast) Unpersist(ctx context.Context, blocking bool) error {
	b.mu.Lock()
	if b.state == StateUnpersisted || b.state == StateDestroyed {
		b.mu.Unlock()
		return nil
	}
	prev := b.state
	b.state = StateUnpersisted
	b.mu.Unlock()

	if err := b.m.unpersist(ctx, b.id, false, blocking); err != nil {
		b.mu.Lock()
		if b.state == StateUnpersisted {
			b.state = prev
		}
		b.mu.Unlock()
		return err
	}
	return nil
}

// Destroy removes the broadcast everywhere: every node's block cache plus
// the origin's registry entry and backing file. Any further dereference
// fails with ErrNotFound. Idempotent. A failed blocking fan-out rolls
// state and payload back so a retry re-attempts the cluster removal.
func (b *Broadcast) Destroy(ctx context.Context, blocking bool) error {
	b.mu.Lock()
	if b.state == StateDestroyed {
		b.mu.Unlock()
		return nil
	}
	prev := b.state
	prevPayload, prevHasPayload := b.payload, b.hasPayload
	b.state = StateDestroyed
	b.payload = nil
	b.hasPayload = false
	b.mu.Unlock()

	if err := b.m.unpersist(ctx, b.id, true, blocking); err != nil {
		b.mu.Lock()
		if b.state == StateDestroyed {
			b.state = prev
			b.payload = prevPayload
			b.hasPayload = prevHasPayload
		}
		b.mu.Unlock()
		return err
	}
	return nil
}

// decodePayload deserializes payload bytes with the manager's serializer.
func (m *Manager) decodePayload(data []byte) (any, error) {
	m.mu.Lock()
	serializer := m.serializer
	m.mu.Unlock()

	if serializer == nil {
		return nil, ErrNotInitialized
	}

	return serializer.Decode(bytes.NewReader(data))
}
