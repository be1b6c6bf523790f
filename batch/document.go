// ABOUTME: Batch document model holding ordered encoded lead entries
// ABOUTME: Normalizes the legacy string-keyed map shape to the array shape
package batch

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/harperreed/leadbatch/docstore"
)

// Document field names as stored.
const (
	FieldCompanies  = "companies"
	FieldBatchSize  = "batchSize"
	FieldUploadedAt = "uploadedAt"
	FieldCreatedAt  = "createdAt"
	FieldSplitFrom  = "splitFrom"
	FieldSplitIndex = "splitIndex"
	FieldSplitAt    = "splitAt"
)

// Document is one batch document: an ordered sequence of encoded lead
// entries plus bookkeeping. Positions are indexes into Entries and are only
// meaningful against the document's current contents.
type Document struct {
	Entries    []string
	UploadedAt string
	CreatedAt  string

	// Split provenance, set on fragments produced by a split.
	SplitFrom  string
	SplitIndex int
	SplitAt    string
}

// FromFields builds a Document from stored fields. The companies field is
// normalized first: modern documents store an array, legacy documents store
// a map with string numeric keys. Every downstream component only ever sees
// the array shape.
func FromFields(fields docstore.Fields) (*Document, error) {
	entries, err := NormalizeEntries(fields[FieldCompanies])
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Entries:    entries,
		UploadedAt: stringField(fields, FieldUploadedAt),
		CreatedAt:  stringField(fields, FieldCreatedAt),
		SplitFrom:  stringField(fields, FieldSplitFrom),
		SplitAt:    stringField(fields, FieldSplitAt),
	}
	if n, ok := intField(fields, FieldSplitIndex); ok {
		doc.SplitIndex = n
	}
	return doc, nil
}

// ToFields renders the document for storage, always in the array shape,
// with batchSize kept in step with the entry count.
func (d *Document) ToFields() docstore.Fields {
	entries := make([]any, len(d.Entries))
	for i, e := range d.Entries {
		entries[i] = e
	}

	fields := docstore.Fields{
		FieldCompanies: entries,
		FieldBatchSize: len(d.Entries),
	}
	if d.UploadedAt != "" {
		fields[FieldUploadedAt] = d.UploadedAt
	}
	if d.CreatedAt != "" {
		fields[FieldCreatedAt] = d.CreatedAt
	}
	if d.SplitFrom != "" {
		fields[FieldSplitFrom] = d.SplitFrom
		fields[FieldSplitIndex] = d.SplitIndex
		fields[FieldSplitAt] = d.SplitAt
	}
	return fields
}

// NewDocument creates an empty batch document stamped with now.
func NewDocument(now time.Time) *Document {
	return &Document{
		CreatedAt:  now.UTC().Format(time.RFC3339),
		UploadedAt: now.UTC().Format(time.RFC3339),
	}
}

// NormalizeEntries converts a stored companies field into the ordered
// array shape. Accepts the modern array form and the legacy map form with
// string numeric keys ("0", "1", ...) ordered by their numeric value.
func NormalizeEntries(v any) ([]string, error) {
	switch companies := v.(type) {
	case nil:
		return nil, nil
	case []any:
		entries := make([]string, 0, len(companies))
		for i, e := range companies {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("companies[%d] is %T, want string", i, e)
			}
			entries = append(entries, s)
		}
		return entries, nil
	case []string:
		return companies, nil
	case map[string]any:
		type keyed struct {
			n int
			s string
		}
		ordered := make([]keyed, 0, len(companies))
		for k, e := range companies {
			n, err := strconv.Atoi(k)
			if err != nil {
				return nil, fmt.Errorf("companies has non-numeric key %q", k)
			}
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("companies[%q] is %T, want string", k, e)
			}
			ordered = append(ordered, keyed{n: n, s: s})
		}
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].n < ordered[j].n })
		entries := make([]string, 0, len(ordered))
		for _, kv := range ordered {
			entries = append(entries, kv.s)
		}
		return entries, nil
	}
	return nil, fmt.Errorf("companies field is %T, want array or map", v)
}

func stringField(fields docstore.Fields, key string) string {
	s, _ := fields[key].(string)
	return s
}

func intField(fields docstore.Fields, key string) (int, bool) {
	switch n := fields[key].(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}
