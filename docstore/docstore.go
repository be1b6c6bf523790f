// ABOUTME: Document store interface the batch core is written against
// ABOUTME: Defines Fields, queries, and the error taxonomy for store failures
package docstore

import (
	"context"
	"errors"
)

// Fields is the schemaless body of one stored document.
type Fields = map[string]any

var (
	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrDocumentTooLarge is returned by Put when the serialized document
	// exceeds the store's per-document size limit.
	ErrDocumentTooLarge = errors.New("document size exceeds the maximum allowed")

	// ErrStoreOverloaded signals a write-rate rejection; callers back off
	// and retry the same unit of work.
	ErrStoreOverloaded = errors.New("store overloaded")
)

// MaxDocumentBytes is the serialized size ceiling for one document. The
// backing stores this models enforce a limit in the 1 MiB class.
const MaxDocumentBytes = 1 << 20

// Op is a query predicate operator.
type Op string

const (
	OpEqual Op = "=="
	OpLess  Op = "<"
)

// Where is one query predicate on a document field.
type Where struct {
	Field string
	Op    Op
	Value any
}

// Query selects and orders documents within a collection. OrderByID orders
// by document id; otherwise OrderBy names a document field. Limit <= 0
// means no limit.
type Query struct {
	Where      []Where
	OrderBy    string
	OrderByID  bool
	Descending bool
	Limit      int
}

// Doc pairs a document id with its fields.
type Doc struct {
	ID     string
	Fields Fields
}

// Store is the document database interface the batch core consumes. Put is
// a whole-document overwrite; there are no partial-field updates and no
// multi-document transactions.
type Store interface {
	Get(ctx context.Context, collection, id string) (Fields, error)
	Put(ctx context.Context, collection, id string, fields Fields) error
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) ([]Doc, error)
	Close() error
}
