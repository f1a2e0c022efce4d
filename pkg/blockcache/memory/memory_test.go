package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xystevensun/spark-private/pkg/blockcache"
)

func TestPutGetRemove(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.Put(ctx, 1, []byte("payload"), blockcache.TierMemoryAndDisk))

	data, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	require.NoError(t, store.Remove(ctx, 1))
	_, err = store.Get(ctx, 1)
	assert.ErrorIs(t, err, blockcache.ErrNotFound)
}

func TestGetMiss(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	_, err := store.Get(context.Background(), 99)
	assert.ErrorIs(t, err, blockcache.ErrNotFound)
}

func TestRemoveMissingIsNoop(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	assert.NoError(t, store.Remove(context.Background(), 5))
}

func TestPutCopiesData(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	data := []byte("original")
	require.NoError(t, store.Put(ctx, 1, data, blockcache.TierMemoryOnly))
	data[0] = 'X'

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Put(ctx, 1, nil, blockcache.TierMemoryOnly), blockcache.ErrStoreClosed)
	_, err := store.Get(ctx, 1)
	assert.ErrorIs(t, err, blockcache.ErrStoreClosed)
	assert.ErrorIs(t, store.Remove(ctx, 1), blockcache.ErrStoreClosed)
}

func TestContextCancelled(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, store.Put(ctx, 1, nil, blockcache.TierMemoryOnly))
}
