// ABOUTME: Test utilities for creating isolated document stores
// ABOUTME: Uses temporary directories with BadgerDB for test isolation
package docstore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v3"
)

// badgerKV wraps BadgerDB to provide the same interface as the charm
// backend for testing without requiring server connectivity.
type badgerKV struct {
	db *badger.DB
	mu sync.RWMutex
}

func (b *badgerKV) Get(key []byte) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var result []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		result, err = item.ValueCopy(nil)
		return err
	})
	return result, err
}

func (b *badgerKV) Set(key, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (b *badgerKV) Delete(key []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (b *badgerKV) Keys() ([][]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

func (b *badgerKV) Close() error {
	return b.db.Close()
}

// NewTestStore creates a document store backed by BadgerDB in a temporary
// directory. The returned cleanup function should be deferred to close the
// database and remove the directory.
func NewTestStore(t *testing.T) (Store, func()) {
	t.Helper()
	return NewTestStoreWithLimit(t, MaxDocumentBytes)
}

// NewTestStoreWithLimit is NewTestStore with an explicit put size ceiling,
// so oversize handling can be exercised without megabyte documents.
func NewTestStoreWithLimit(t *testing.T, maxBytes int) (Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "leadbatch-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dataDir := filepath.Join(tmpDir, "leadbatch")
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		_ = os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create data dir: %v", err)
	}

	opts := badger.DefaultOptions(dataDir).
		WithLogger(nil) // Suppress badger logs in tests

	db, err := badger.Open(opts)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		t.Fatalf("Failed to open badger: %v", err)
	}

	store := NewKVStoreWithLimit(&badgerKV{db: db}, maxBytes)

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close test database: %v", err)
		}
		if err := os.RemoveAll(tmpDir); err != nil {
			t.Logf("Warning: failed to remove temp directory %s: %v", tmpDir, err)
		}
	}

	return store, cleanup
}
