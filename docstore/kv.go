// ABOUTME: Document store implementation over a flat key-value backend
// ABOUTME: Stores JSON documents under doc:<collection>:<id> keys
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// KV is the minimal key-value surface a backend must provide. The charm
// client and the badger-backed test store both satisfy it.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Keys() ([][]byte, error)
}

// kvStore implements Store on top of a KV backend.
type kvStore struct {
	kv       KV
	maxBytes int
	entropy  *rand.Rand
}

// NewKVStore wraps a KV backend as a document store enforcing the
// per-document size ceiling.
func NewKVStore(kv KV) Store {
	return NewKVStoreWithLimit(kv, MaxDocumentBytes)
}

// NewKVStoreWithLimit is NewKVStore with an explicit size ceiling. Tests
// use small limits to exercise the oversize paths without megabyte
// documents.
func NewKVStoreWithLimit(kv KV, maxBytes int) Store {
	return &kvStore{
		kv:       kv,
		maxBytes: maxBytes,
		entropy:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func docKey(collection, id string) []byte {
	return []byte("doc:" + collection + ":" + id)
}

func collectionPrefix(collection string) string {
	return "doc:" + collection + ":"
}

func (s *kvStore) Get(_ context.Context, collection, id string) (Fields, error) {
	raw, err := s.kv.Get(docKey(collection, id))
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	var fields Fields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("corrupt document %s/%s: %w", collection, id, err)
	}
	return fields, nil
}

func (s *kvStore) Put(_ context.Context, collection, id string, fields Fields) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s/%s: %w", collection, id, err)
	}
	if len(raw) > s.maxBytes {
		return fmt.Errorf("%w: %s/%s is %d bytes", ErrDocumentTooLarge, collection, id, len(raw))
	}
	return s.kv.Set(docKey(collection, id), raw)
}

func (s *kvStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
	if err := s.Put(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (s *kvStore) Delete(_ context.Context, collection, id string) error {
	return s.kv.Delete(docKey(collection, id))
}

func (s *kvStore) Query(ctx context.Context, collection string, q Query) ([]Doc, error) {
	keys, err := s.kv.Keys()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	prefix := collectionPrefix(collection)
	var docs []Doc
	for _, k := range keys {
		key := string(k)
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		id := key[len(prefix):]
		fields, err := s.Get(ctx, collection, id)
		if err != nil {
			// Deleted between Keys and Get; skip.
			continue
		}
		if matchesAll(id, fields, q.Where) {
			docs = append(docs, Doc{ID: id, Fields: fields})
		}
	}

	sortDocs(docs, q)
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

func (s *kvStore) Close() error {
	if c, ok := s.kv.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func matchesAll(id string, fields Fields, where []Where) bool {
	for _, w := range where {
		var val any
		if w.Field == "" {
			val = id
		} else {
			val = fields[w.Field]
		}
		cmp, ok := compareValues(val, w.Value)
		if !ok {
			return false
		}
		switch w.Op {
		case OpEqual:
			if cmp != 0 {
				return false
			}
		case OpLess:
			if cmp >= 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func sortDocs(docs []Doc, q Query) {
	sort.SliceStable(docs, func(i, j int) bool {
		var cmp int
		if q.OrderByID || q.OrderBy == "" {
			cmp = strings.Compare(docs[i].ID, docs[j].ID)
		} else {
			c, ok := compareValues(docs[i].Fields[q.OrderBy], docs[j].Fields[q.OrderBy])
			if !ok {
				return false
			}
			cmp = c
		}
		if q.Descending {
			return cmp > 0
		}
		return cmp < 0
	})
}

// compareValues compares two document values of the same kind. Numbers
// compare numerically regardless of their concrete Go type (JSON decodes to
// float64, writers may hand in ints); strings compare lexically.
func compareValues(a, b any) (int, bool) {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
