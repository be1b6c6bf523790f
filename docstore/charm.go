// ABOUTME: Charm KV backend with automatic sync support
// ABOUTME: Thread-safe singleton initialization using sync.Once
package docstore

import (
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/charm/kv"
)

var (
	globalStore Store
	storeOnce   sync.Once
	storeErr    error
)

// charmKV wraps charm's KV with a mutex and optional write-through sync,
// satisfying the KV interface.
type charmKV struct {
	kv       *kv.KV
	autoSync bool
	mu       sync.RWMutex
}

// OpenCharmStore opens a document store backed by the charm KV cloud. The
// config's host is exported before the KV is opened, matching how charm
// resolves its server.
func OpenCharmStore(cfg *Config) (Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	_ = os.Setenv("CHARM_HOST", cfg.Host)

	db, err := kv.OpenWithDefaults(AppName)
	if err != nil {
		return nil, fmt.Errorf("failed to open charm kv: %w", err)
	}

	backend := &charmKV{kv: db, autoSync: cfg.AutoSync}

	// Sync on startup to pull remote changes
	if cfg.AutoSync {
		_ = db.Sync()
	}

	return NewKVStore(backend), nil
}

// GetStore returns the global document store, initializing it once from
// the on-disk config.
func GetStore() (Store, error) {
	storeOnce.Do(func() {
		cfg, err := LoadConfig()
		if err != nil {
			storeErr = fmt.Errorf("failed to load config: %w", err)
			return
		}
		globalStore, storeErr = OpenCharmStore(cfg)
	})
	if storeErr != nil {
		return nil, storeErr
	}
	if globalStore == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	return globalStore, nil
}

func (c *charmKV) Get(key []byte) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.kv.Get(key)
}

func (c *charmKV) Set(key, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.kv.Set(key, value); err != nil {
		return err
	}

	// Sync while still holding lock to avoid race condition
	if c.autoSync {
		_ = c.kv.Sync()
	}
	return nil
}

func (c *charmKV) Delete(key []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.kv.Delete(key); err != nil {
		return err
	}

	if c.autoSync {
		_ = c.kv.Sync()
	}
	return nil
}

func (c *charmKV) Keys() ([][]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.kv.Keys()
}

// Sync performs a manual sync with the charm server.
func (c *charmKV) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kv.Sync()
}

func (c *charmKV) Close() error {
	// charm/kv doesn't expose Close(); the underlying BadgerDB is cleaned
	// up on process exit.
	return nil
}
