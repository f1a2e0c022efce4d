package cluster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xystevensun/spark-private/pkg/blockcache"
	"github.com/xystevensun/spark-private/pkg/blockcache/memory"
)

func TestRemoveBroadcastFansOut(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()

	one := memory.NewMemoryStore()
	two := memory.NewMemoryStore()
	bus.RegisterNode("node-1", one)
	bus.RegisterNode("node-2", two)

	require.NoError(t, one.Put(ctx, 42, []byte("v"), blockcache.TierMemoryAndDisk))
	require.NoError(t, two.Put(ctx, 42, []byte("v"), blockcache.TierMemoryAndDisk))

	require.NoError(t, bus.RemoveBroadcast(ctx, 42, false, true))

	_, err := one.Get(ctx, 42)
	assert.ErrorIs(t, err, blockcache.ErrNotFound)
	_, err = two.Get(ctx, 42)
	assert.ErrorIs(t, err, blockcache.ErrNotFound)
}

func TestRemoveBroadcastFromOriginCallsHook(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()

	var hookCalls []int64
	bus.SetOriginHook(func(id int64) error {
		hookCalls = append(hookCalls, id)
		return nil
	})

	require.NoError(t, bus.RemoveBroadcast(ctx, 7, true, true))
	assert.Equal(t, []int64{7}, hookCalls)

	// fromOrigin=false must leave the origin untouched.
	require.NoError(t, bus.RemoveBroadcast(ctx, 8, false, true))
	assert.Equal(t, []int64{7}, hookCalls)
}

func TestBlockingRemovalReturnsError(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()

	closed := memory.NewMemoryStore()
	require.NoError(t, closed.Close())
	bus.RegisterNode("broken", closed)

	err := bus.RemoveBroadcast(ctx, 1, false, true)
	assert.Error(t, err)
}

func TestNonBlockingRemovalSwallowsError(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()

	closed := memory.NewMemoryStore()
	require.NoError(t, closed.Close())
	bus.RegisterNode("broken", closed)

	assert.NoError(t, bus.RemoveBroadcast(ctx, 1, false, false))
}

func TestNonBlockingRemovalEventuallyRemoves(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()

	store := memory.NewMemoryStore()
	bus.RegisterNode("node", store)
	require.NoError(t, store.Put(ctx, 5, []byte("v"), blockcache.TierMemoryAndDisk))

	require.NoError(t, bus.RemoveBroadcast(ctx, 5, false, false))

	assert.Eventually(t, func() bool {
		_, err := store.Get(ctx, 5)
		return errors.Is(err, blockcache.ErrNotFound)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRemovalVisitsEveryNodeAfterFailure(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()

	closed := memory.NewMemoryStore()
	require.NoError(t, closed.Close())
	healthy := memory.NewMemoryStore()
	require.NoError(t, healthy.Put(ctx, 9, []byte("v"), blockcache.TierMemoryAndDisk))

	bus.RegisterNode("broken", closed)
	bus.RegisterNode("healthy", healthy)

	assert.Error(t, bus.RemoveBroadcast(ctx, 9, false, true))

	_, err := healthy.Get(ctx, 9)
	assert.ErrorIs(t, err, blockcache.ErrNotFound)
}

func TestUnregisterNode(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()

	store := memory.NewMemoryStore()
	bus.RegisterNode("node", store)
	bus.UnregisterNode("node")

	require.NoError(t, store.Put(ctx, 3, []byte("v"), blockcache.TierMemoryAndDisk))
	require.NoError(t, bus.RemoveBroadcast(ctx, 3, false, true))

	// Unregistered nodes keep their entries.
	_, err := store.Get(ctx, 3)
	assert.NoError(t, err)
}
