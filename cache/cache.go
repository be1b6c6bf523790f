// ABOUTME: Local cache of the decoded record set with TTL and eviction
// ABOUTME: SQLite-backed {data, fetchedAt} entries, invalidated after writes
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harperreed/leadbatch/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS record_cache (
	key TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	summary INTEGER NOT NULL DEFAULT 0,
	fetched_at DATETIME NOT NULL
);
`

const recordSetKey = "records"

// Options configures a Cache. Zero values fall back to defaults.
type Options struct {
	// TTL is how long a cached record set stays fresh (default 5 minutes).
	TTL time.Duration

	// MaxBytes is the capacity policy: record sets whose serialized form
	// exceeds it are stored as summaries instead of full records
	// (default 4 MiB; <0 disables eviction).
	MaxBytes int
}

// Cache stores the last fully-decoded record set so bulk refreshes don't
// re-read every batch document. It is advisory only: every mutating
// operation must call Invalidate, and a miss or stale entry simply sends
// the caller back to the aggregate reader.
type Cache struct {
	db       *sql.DB
	ttl      time.Duration
	maxBytes int
	now      func() time.Time
}

// CachedRecord pairs a lead with its composite address.
type CachedRecord struct {
	Ref  string       `json:"ref"`
	Lead *models.Lead `json:"lead"`
}

// Open opens (or creates) the cache database at path. The parent directory
// is created if needed.
func Open(path string, opts *Options) (*Cache, error) {
	dsn := path
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		dsn = path + "?_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	// Single connection avoids database-locked errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init cache schema: %w", err)
	}

	c := &Cache{db: db, ttl: 5 * time.Minute, maxBytes: 4 << 20, now: time.Now}
	if opts != nil {
		if opts.TTL > 0 {
			c.ttl = opts.TTL
		}
		if opts.MaxBytes != 0 {
			c.maxBytes = opts.MaxBytes
		}
	}
	return c, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// StoreRecords caches the full decoded record set. Sets larger than the
// capacity are evicted to summary fields instead of being stored whole.
func (c *Cache) StoreRecords(records []CachedRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}

	summary := 0
	if c.maxBytes > 0 && len(data) > c.maxBytes {
		summaries := make([]models.LeadSummary, 0, len(records))
		for _, r := range records {
			ref, err := models.ParseRecordRef(r.Ref)
			if err != nil {
				continue
			}
			summaries = append(summaries, r.Lead.Summary(ref))
		}
		data, err = json.Marshal(summaries)
		if err != nil {
			return err
		}
		summary = 1
	}

	_, err = c.db.Exec(`
		INSERT INTO record_cache (key, data, summary, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data,
			summary = excluded.summary, fetched_at = excluded.fetched_at
	`, recordSetKey, data, summary, c.now().UTC())
	return err
}

// LoadRecords returns the cached record set if present and fresh. The bool
// is false on a miss, a stale entry, or when only a summary was stored.
func (c *Cache) LoadRecords() ([]CachedRecord, bool) {
	data, summary, fetchedAt, ok := c.load()
	if !ok || summary != 0 {
		return nil, false
	}
	if c.now().Sub(fetchedAt) > c.ttl {
		return nil, false
	}

	var records []CachedRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false
	}
	return records, true
}

// LoadSummaries returns the cached summary set when the capacity policy
// evicted the full records.
func (c *Cache) LoadSummaries() ([]models.LeadSummary, bool) {
	data, summary, fetchedAt, ok := c.load()
	if !ok || summary == 0 {
		return nil, false
	}
	if c.now().Sub(fetchedAt) > c.ttl {
		return nil, false
	}

	var summaries []models.LeadSummary
	if err := json.Unmarshal(data, &summaries); err != nil {
		return nil, false
	}
	return summaries, true
}

func (c *Cache) load() (data []byte, summary int, fetchedAt time.Time, ok bool) {
	err := c.db.QueryRow(`
		SELECT data, summary, fetched_at FROM record_cache WHERE key = ?
	`, recordSetKey).Scan(&data, &summary, &fetchedAt)
	if err != nil {
		return nil, 0, time.Time{}, false
	}
	return data, summary, fetchedAt, true
}

// Invalidate drops the cached record set. Called after every mutating
// operation against the batch store.
func (c *Cache) Invalidate() error {
	_, err := c.db.Exec(`DELETE FROM record_cache WHERE key = ?`, recordSetKey)
	return err
}
