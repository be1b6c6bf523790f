// ABOUTME: Aggregate reader rebuilding the full record set from all batches
// ABOUTME: Decodes every entry in every document, skipping failures
package store

import (
	"context"
	"log"

	"github.com/harperreed/leadbatch/batch"
	"github.com/harperreed/leadbatch/docstore"
)

// AggregateReader loads the complete in-memory record set from every batch
// document in the collection.
type AggregateReader struct {
	ds         docstore.Store
	collection string
}

// NewReader creates an AggregateReader. An empty collection name uses the
// default.
func NewReader(ds docstore.Store, collection string) *AggregateReader {
	if collection == "" {
		collection = DefaultCollection
	}
	return &AggregateReader{ds: ds, collection: collection}
}

// LoadAll reads every batch document (id descending; the order is cosmetic)
// and decodes every entry, deriving each record's composite address. A
// malformed document or undecodable entry never fails the whole load: it is
// logged and skipped. The returned entries all carry a decoded Lead.
func (r *AggregateReader) LoadAll(ctx context.Context) ([]Entry, error) {
	docs, err := r.ds.Query(ctx, r.collection, docstore.Query{
		OrderByID:  true,
		Descending: true,
	})
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, d := range docs {
		doc, err := batch.FromFields(d.Fields)
		if err != nil {
			log.Printf("load: skipping malformed batch %s: %v", d.ID, err)
			continue
		}
		for i, raw := range doc.Entries {
			entry := decodeEntry(d.ID, i, raw)
			if entry.Err != nil {
				log.Printf("load: batch %s: skipping undecodable entry at position %d: %v", d.ID, i, entry.Err)
				continue
			}
			out = append(out, entry)
		}
	}
	return out, nil
}
