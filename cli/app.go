// ABOUTME: Shared command dependencies for the CLI
// ABOUTME: Bundles the document store, batch store, reader, and cache
package cli

import (
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/harperreed/leadbatch/cache"
	"github.com/harperreed/leadbatch/docstore"
	"github.com/harperreed/leadbatch/store"
)

// App bundles the stores every CLI command works against.
type App struct {
	DS     docstore.Store
	Store  *store.BatchStore
	Reader *store.AggregateReader
	Cache  *cache.Cache // may be nil when the cache failed to open
}

// NewApp wires an App from an opened document store.
func NewApp(ds docstore.Store, cfg *docstore.Config) *App {
	opts := &store.Options{}
	if cfg != nil && cfg.HardCeiling > 0 {
		opts.HardCeiling = cfg.HardCeiling
	}

	app := &App{
		DS:     ds,
		Store:  store.New(ds, opts),
		Reader: store.NewReader(ds, store.DefaultCollection),
	}

	// The cache is an optimization; run without it if it can't open.
	cachePath := filepath.Join(xdg.DataHome, docstore.AppName, "records-cache.db")
	if c, err := cache.Open(cachePath, nil); err == nil {
		app.Cache = c
	}
	return app
}

// Close releases the app's resources.
func (a *App) Close() {
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	_ = a.DS.Close()
}

func (a *App) invalidate() {
	if a.Cache != nil {
		_ = a.Cache.Invalidate()
	}
}
