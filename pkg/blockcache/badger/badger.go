// Package badger implements a badger-backed block cache store.
//
// This is the memory-and-disk tier: badger keeps hot entries in memtables
// and spills to disk, which matches the cache's role of surviving payload
// drops without re-fetching over the network.
package badger

import (
	"context"
	"encoding/binary"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/xystevensun/spark-private/pkg/blockcache"
)

// Key namespace: all cache entries live under the "bc:" prefix with the
// broadcast id encoded big-endian so keys sort by id.
const prefixEntry = "bc:"

// BadgerStore is a blockcache.Store backed by an embedded badger database.
type BadgerStore struct {
	db *badgerdb.DB
}

// NewBadgerStore opens (or creates) a badger database at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badgerdb.DefaultOptions(path)
	// Badger's own logger is chatty at INFO; the cache logs through the
	// process logger instead.
	opts = opts.WithLogger(nil)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open block cache at %s: %w", path, err)
	}

	return &BadgerStore{db: db}, nil
}

func keyEntry(id int64) []byte {
	key := make([]byte, len(prefixEntry)+8)
	copy(key, prefixEntry)
	binary.BigEndian.PutUint64(key[len(prefixEntry):], uint64(id))
	return key
}

// Put stores data under id. The tier hint is accepted for interface
// compatibility; badger always persists to disk.
func (s *BadgerStore) Put(ctx context.Context, id int64, data []byte, tier blockcache.Tier) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(keyEntry(id), data)
	})
	if err != nil {
		return fmt.Errorf("failed to cache broadcast %d: %w", id, err)
	}
	return nil
}

// Get returns the data cached under id.
func (s *BadgerStore) Get(ctx context.Context, id int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyEntry(id))
		if err == badgerdb.ErrKeyNotFound {
			return blockcache.ErrNotFound
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == blockcache.ErrNotFound {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached broadcast %d: %w", id, err)
	}

	return data, nil
}

// Remove deletes the entry for id. Deleting a missing key is a no-op in
// badger, matching the Store contract.
func (s *BadgerStore) Remove(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(keyEntry(id))
	})
	if err != nil {
		return fmt.Errorf("failed to remove cached broadcast %d: %w", id, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

var _ blockcache.Store = (*BadgerStore)(nil)
