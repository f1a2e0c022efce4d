package badger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xystevensun/spark-private/pkg/blockcache"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPutGetRemove(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, 42, []byte("serialized value"), blockcache.TierMemoryAndDisk))

	data, err := store.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, []byte("serialized value"), data)

	require.NoError(t, store.Remove(ctx, 42))
	_, err = store.Get(ctx, 42)
	assert.ErrorIs(t, err, blockcache.ErrNotFound)
}

func TestGetMiss(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), 7)
	assert.ErrorIs(t, err, blockcache.ErrNotFound)
}

func TestRemoveMissingIsNoop(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Remove(context.Background(), 7))
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache")

	store, err := NewBadgerStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, 1, []byte("survives restart"), blockcache.TierMemoryAndDisk))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	data, err := reopened.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("survives restart"), data)
}

func TestKeysDoNotCollide(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, 1, []byte("one"), blockcache.TierMemoryAndDisk))
	require.NoError(t, store.Put(ctx, 256, []byte("two-five-six"), blockcache.TierMemoryAndDisk))

	one, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), one)

	big, err := store.Get(ctx, 256)
	require.NoError(t, err)
	assert.Equal(t, []byte("two-five-six"), big)
}
