// Package broadcast implements distribution of large immutable values
// from one origin node to many workers.
//
// The origin serializes a value once, persists it to a file registry, and
// serves it over a pull-based HTTP endpoint. Each worker fetches the value
// at most once and answers later dereferences from its local block cache.
// A recurring sweep bounds the origin's on-disk growth.
package broadcast

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xystevensun/spark-private/internal/logger"
	"github.com/xystevensun/spark-private/pkg/auth"
	"github.com/xystevensun/spark-private/pkg/blockcache"
	"github.com/xystevensun/spark-private/pkg/cluster"
	"github.com/xystevensun/spark-private/pkg/codec"
	"github.com/xystevensun/spark-private/pkg/config"
	"github.com/xystevensun/spark-private/pkg/metrics"
	"github.com/xystevensun/spark-private/pkg/transport"
)

// readTimeout bounds a whole remote fetch. Fixed by the protocol; the
// connect timeout is configurable separately.
const readTimeout = 5 * time.Minute

// Options carries the manager's collaborators.
type Options struct {
	// Cache is the node-local block cache. Required.
	Cache blockcache.Store

	// Security signs and verifies fetch URLs. Nil disables authentication.
	Security auth.SecurityContext

	// Remover fans broadcast removals out to the cluster. Nil means an
	// in-process bus covering only this node's cache.
	Remover cluster.Remover

	// Serializer encodes payloads. Nil selects gob.
	Serializer codec.Serializer

	// Metrics is optional instrumentation. Nil is a no-op.
	Metrics *metrics.Metrics

	// NodeName identifies this node on the removal bus. Defaults to the
	// hostname.
	NodeName string
}

// Manager owns the broadcast lifecycle for one node.
//
// It is an explicit service object rather than process-global state:
// construct one per node, call Initialize once (further calls are no-ops),
// and Stop to tear down. The mutex guards only structural fields (server,
// sweeper, codec, flags); bulk data transfer runs outside it.
type Manager struct {
	cfg  config.BroadcastConfig
	opts Options

	mu          sync.Mutex
	initialized bool
	isOrigin    bool
	dir         string
	ownsDir     bool
	baseURI     string
	server      *transport.Server
	client      *http.Client
	compressor  codec.Compressor
	serializer  codec.Serializer
	bufferSize  int
	registry    *FileRegistry
	sweepStop   chan struct{}
	sweepDone   chan struct{}

	nextID atomic.Int64
}

// NewManager creates an uninitialized manager.
func NewManager(cfg config.BroadcastConfig, opts Options) *Manager {
	if opts.Security == nil {
		opts.Security = auth.Disabled{}
	}
	if opts.Serializer == nil {
		opts.Serializer = codec.NewGobSerializer()
	}
	if opts.NodeName == "" {
		if host, err := os.Hostname(); err == nil {
			opts.NodeName = host
		} else {
			opts.NodeName = "local"
		}
	}

	return &Manager{
		cfg:  cfg,
		opts: opts,
	}
}

// Initialize prepares the node for broadcasting. Executed at most once;
// subsequent calls are no-ops.
//
// On the origin it allocates the working directory, starts the transport
// endpoint, records the reachable base URI, and starts the cleanup
// sweeper. Workers only pick up the shared base URI and codec settings.
func (m *Manager) Initialize(ctx context.Context, isOrigin bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	if m.opts.Cache == nil {
		return fmt.Errorf("broadcast manager requires a block cache")
	}

	m.isOrigin = isOrigin
	m.serializer = m.opts.Serializer
	m.bufferSize = m.cfg.BufferSize.Int()
	if m.bufferSize <= 0 {
		m.bufferSize = config.DefaultBufferSize.Int()
	}
	if m.cfg.Compress {
		m.compressor = codec.NewGzipCompressor()
	}

	connectTimeout := m.cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = config.DefaultConnectTimeout
	}
	m.client = &http.Client{
		Timeout: readTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
		},
	}

	if m.opts.Remover == nil {
		bus := cluster.NewBus()
		bus.RegisterNode(m.opts.NodeName, m.opts.Cache)
		m.opts.Remover = bus
	}

	if isOrigin {
		if err := m.startOrigin(); err != nil {
			return err
		}
	} else {
		if m.cfg.BaseURI == "" {
			return fmt.Errorf("worker node requires broadcast base_uri")
		}
		m.baseURI = m.cfg.BaseURI
	}

	m.initialized = true
	logger.Info("broadcast manager initialized",
		"origin", isOrigin,
		"base_uri", m.baseURI,
		"compress", m.cfg.Compress,
	)
	return nil
}

// startOrigin allocates the working directory, starts the endpoint, and
// starts the sweeper. Callers must hold m.mu.
func (m *Manager) startOrigin() error {
	dir := m.cfg.Dir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "broadcast-")
		if err != nil {
			return fmt.Errorf("failed to create broadcast directory: %w", err)
		}
		dir = tmp
		m.ownsDir = true
	} else {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create broadcast directory: %w", err)
		}
	}
	m.dir = dir
	m.registry = NewFileRegistry()

	m.server = transport.New(dir, m.opts.Security, transport.Config{Port: m.cfg.Port})
	if err := m.server.Start(); err != nil {
		m.server = nil
		return err
	}
	m.baseURI = m.server.BaseURI()

	if bus, ok := m.opts.Remover.(*cluster.Bus); ok {
		bus.SetOriginHook(m.removeOriginEntry)
	}

	// Cleanup of a registry that exists only here is meaningless on
	// workers; the sweeper runs on the origin alone.
	if m.cfg.TTL > 0 {
		m.sweepStop = make(chan struct{})
		m.sweepDone = make(chan struct{})
		go m.sweepLoop(m.sweepStop, m.sweepDone)
	}

	return nil
}

// Stop tears the node down: cancels the sweeper, stops the endpoint, and
// clears cached codec and config state. Safe to call without Initialize
// and safe to call twice.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sweepStop != nil {
		stop, done := m.sweepStop, m.sweepDone
		m.sweepStop, m.sweepDone = nil, nil
		close(stop)
		// Release the lock while draining: the sweeper may be mid-pass
		// waiting for it.
		m.mu.Unlock()
		<-done
		m.mu.Lock()
	}

	var firstErr error
	if m.server != nil {
		if err := m.server.Stop(ctx); err != nil {
			firstErr = err
		}
		m.server = nil
	}

	// A directory we created ourselves is removed with its files; a
	// configured directory belongs to the operator and is left alone.
	if m.ownsDir && m.dir != "" {
		if err := os.RemoveAll(m.dir); err != nil {
			logger.Warn("failed to remove broadcast directory", "dir", m.dir, "error", err)
		}
	}
	m.dir = ""
	m.ownsDir = false

	m.compressor = nil
	m.serializer = nil
	m.client = nil
	m.baseURI = ""
	m.registry = nil
	m.initialized = false

	return firstErr
}

// BaseURI returns the transport endpoint's base URI, valid once an origin
// manager is initialized.
func (m *Manager) BaseURI() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseURI
}

// Registry returns the origin's file registry, nil on workers.
func (m *Manager) Registry() *FileRegistry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry
}

// NewID issues the next process-unique broadcast identifier.
func (m *Manager) NewID() int64 {
	return m.nextID.Add(1)
}

// Cleanup runs one sweep, removing registry entries last touched strictly
// before cutoff and deleting their files. It holds the manager lock for
// the full pass, serializing sweeps against Initialize, Stop, and
// destroys. Returns the number of entries removed.
func (m *Manager) Cleanup(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registry == nil {
		return 0
	}

	removed := m.registry.Cleanup(cutoff)
	if removed > 0 {
		logger.Info("broadcast sweep removed entries", "removed", removed, "cutoff", cutoff)
	}
	m.opts.Metrics.ObserveSweepRemovals(removed)
	m.opts.Metrics.SetRegistrySize(m.registry.Len())
	return removed
}

// sweepLoop runs Cleanup on the configured interval until stopped.
func (m *Manager) sweepLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := m.cfg.CleanupInterval
	if interval <= 0 {
		interval = config.DefaultCleanupInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.Cleanup(time.Now().Add(-m.cfg.TTL))
		}
	}
}

// unpersist drops the broadcast from every node's cache and, when
// removeFromOrigin is set, from the origin's registry as well.
func (m *Manager) unpersist(ctx context.Context, id int64, removeFromOrigin, blocking bool) error {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return ErrNotInitialized
	}
	remover := m.opts.Remover
	m.mu.Unlock()

	return remover.RemoveBroadcast(ctx, id, removeFromOrigin, blocking)
}

// removeOriginEntry is the origin-side removal hook handed to the cluster
// bus: it drops the registry entry and deletes the backing file. Deletion
// failures are logged, never propagated.
func (m *Manager) removeOriginEntry(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registry == nil {
		return nil
	}

	entry, ok := m.registry.Remove(id)
	if ok {
		deleteFile(entry.FilePath, id)
	}
	m.opts.Metrics.SetRegistrySize(m.registry.Len())
	return nil
}
