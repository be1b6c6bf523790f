// ABOUTME: Splitter and rebalancer moving entries between batch documents
// ABOUTME: Keeps the prefix under the original id, allocates batch_<n> ids
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/harperreed/leadbatch/batch"
	"github.com/harperreed/leadbatch/docstore"
	"github.com/harperreed/leadbatch/models"
)

// fragment records where a contiguous slice of the original document ended
// up after a split: entries [start, start+len(entries)) of the original now
// live in document id at positions 0..len-1.
type fragment struct {
	id      string
	start   int
	entries []string
}

// resolveRef maps an original position to its post-split address.
func resolveRef(fragments []fragment, position int) (models.RecordRef, bool) {
	for _, f := range fragments {
		if position >= f.start && position < f.start+len(f.entries) {
			return models.RecordRef{BatchID: f.id, Position: position - f.start}, true
		}
	}
	return models.RecordRef{}, false
}

// idAllocator hands out strictly increasing batch_<n> ids, starting past
// the highest number currently in use anywhere in the collection. Numbers
// are never reused even when earlier batches were deleted.
type idAllocator struct {
	next int
}

func (s *BatchStore) newIDAllocator(ctx context.Context) (*idAllocator, error) {
	docs, err := s.ds.Query(ctx, s.collection, docstore.Query{})
	if err != nil {
		return nil, fmt.Errorf("failed to scan batch ids: %w", err)
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return &idAllocator{next: batch.MaxBatchNumber(ids) + 1}, nil
}

func (a *idAllocator) alloc() string {
	id := batch.FormatBatchID(a.next)
	a.next++
	return id
}

// splitAndStore divides doc's entries into fragments of at most ceiling
// each and persists them. The first fragment keeps batchID so positions in
// the prefix stay valid; the rest get fresh sequential ids and carry split
// provenance. New documents are written before the original is shrunk, so a
// failure mid-split can duplicate a suffix entry but never lose one.
//
// A fragment whose own write is rejected as too large is halved in place:
// its front half retries under the same id, its back half moves to another
// fresh id. Order within each fragment is preserved throughout.
func (s *BatchStore) splitAndStore(ctx context.Context, batchID string, doc *batch.Document, ceiling int) ([]fragment, error) {
	alloc, err := s.newIDAllocator(ctx)
	if err != nil {
		return nil, err
	}

	planned := batch.SplitEntries(doc.Entries, ceiling)
	now := s.now().UTC().Format(time.RFC3339)

	fragments := make([]fragment, 0, len(planned))
	start := 0
	for i, entries := range planned {
		id := batchID
		if i > 0 {
			id = alloc.alloc()
		}
		fragments = append(fragments, fragment{id: id, start: start, entries: entries})
		start += len(entries)
	}

	// Suffix fragments first, original last.
	for i := len(fragments) - 1; i >= 0; i-- {
		extra, err := s.writeFragment(ctx, &fragments[i], batchID, i, now, alloc)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, extra...)
	}

	log.Printf("batch %s: split %d entries into %d documents", batchID, len(doc.Entries), len(fragments))
	return fragments, nil
}

// writeFragment persists one fragment, halving it into additional fresh-id
// fragments for as long as the store rejects the write as too large. The
// extra fragments it creates are returned, already persisted.
func (s *BatchStore) writeFragment(ctx context.Context, f *fragment, origin string, index int, now string, alloc *idAllocator) ([]fragment, error) {
	var extras []fragment
	for {
		err := s.putWithRetry(ctx, f.id, s.fragmentFields(f, origin, index, now))
		if err == nil {
			return extras, nil
		}
		if !errors.Is(err, docstore.ErrDocumentTooLarge) {
			return nil, err
		}
		if len(f.entries) <= 1 {
			return nil, fmt.Errorf("batch %s: single entry exceeds the document size limit: %w", f.id, err)
		}

		half := len(f.entries) / 2
		back := fragment{
			id:      alloc.alloc(),
			start:   f.start + half,
			entries: f.entries[half:],
		}
		f.entries = f.entries[:half]

		// Persist the moved back half before retrying the front.
		moved, err := s.writeFragment(ctx, &back, origin, index, now, alloc)
		if err != nil {
			return nil, err
		}
		extras = append(extras, back)
		extras = append(extras, moved...)
	}
}

func (s *BatchStore) fragmentFields(f *fragment, origin string, index int, now string) docstore.Fields {
	d := &batch.Document{Entries: f.entries, UploadedAt: now}
	if f.id != origin {
		d.SplitFrom = origin
		d.SplitIndex = index
		d.SplitAt = now
	}
	return d.ToFields()
}

// Rebalance proactively splits every batch document whose entry count
// exceeds the hard ceiling. Documents at or under the ceiling are never
// touched. Returns the number of documents that were split.
func (s *BatchStore) Rebalance(ctx context.Context) (int, error) {
	docs, err := s.ds.Query(ctx, s.collection, docstore.Query{OrderByID: true})
	if err != nil {
		return 0, err
	}

	split := 0
	for _, d := range docs {
		doc, err := batch.FromFields(d.Fields)
		if err != nil {
			log.Printf("rebalance: skipping malformed batch %s: %v", d.ID, err)
			continue
		}
		if len(doc.Entries) <= s.hardCeiling {
			continue
		}

		unlock := s.lockBatch(d.ID)
		// Re-read under the lock; a concurrent writer may have changed it.
		fields, err := s.ds.Get(ctx, s.collection, d.ID)
		if err == nil {
			if fresh, ferr := batch.FromFields(fields); ferr == nil && len(fresh.Entries) > s.hardCeiling {
				if _, serr := s.splitAndStore(ctx, d.ID, fresh, s.hardCeiling); serr != nil {
					unlock()
					return split, fmt.Errorf("rebalance of %s failed: %w", d.ID, serr)
				}
				split++
			}
		}
		unlock()
	}
	return split, nil
}
