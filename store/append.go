// ABOUTME: Record placement: appends leads into batches with spare capacity
// ABOUTME: Creates new store-generated batches when nothing has room
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/harperreed/leadbatch/batch"
	"github.com/harperreed/leadbatch/codec"
	"github.com/harperreed/leadbatch/docstore"
	"github.com/harperreed/leadbatch/models"
)

// AppendRecord stores a new lead and returns its composite address. The
// target batch is the fullest one still under the adaptive ceiling (query
// ordered by current size descending, first candidate); when none has spare
// capacity a new batch document is created with a store-generated id.
func (s *BatchStore) AppendRecord(ctx context.Context, lead *models.Lead) (models.RecordRef, error) {
	encoded, err := codec.Encode(lead)
	if err != nil {
		return models.RecordRef{}, err
	}

	ceiling, err := s.appendCeiling(ctx)
	if err != nil {
		return models.RecordRef{}, err
	}

	candidates, err := s.ds.Query(ctx, s.collection, docstore.Query{
		Where:      []docstore.Where{{Field: batch.FieldBatchSize, Op: docstore.OpLess, Value: ceiling}},
		OrderBy:    batch.FieldBatchSize,
		Descending: true,
		Limit:      1,
	})
	if err != nil {
		return models.RecordRef{}, fmt.Errorf("failed to find a batch with capacity: %w", err)
	}

	if len(candidates) > 0 {
		return s.appendTo(ctx, candidates[0].ID, encoded)
	}

	// No batch has room; start a fresh one.
	doc := batch.NewDocument(s.now())
	doc.Entries = []string{encoded}
	id, err := s.ds.Add(ctx, s.collection, doc.ToFields())
	if err != nil {
		return models.RecordRef{}, fmt.Errorf("failed to create batch: %w", err)
	}
	return models.RecordRef{BatchID: id, Position: 0}, nil
}

func (s *BatchStore) appendTo(ctx context.Context, batchID, encoded string) (models.RecordRef, error) {
	unlock := s.lockBatch(batchID)
	defer unlock()

	// Re-read under the lock; the candidate query result may be stale.
	fields, err := s.ds.Get(ctx, s.collection, batchID)
	if err != nil {
		return models.RecordRef{}, err
	}
	doc, err := batch.FromFields(fields)
	if err != nil {
		return models.RecordRef{}, fmt.Errorf("batch %s: %w", batchID, err)
	}

	doc.Entries = append(doc.Entries, encoded)
	position := len(doc.Entries) - 1

	err = s.putWithRetry(ctx, batchID, doc.ToFields())
	if err == nil {
		return models.RecordRef{BatchID: batchID, Position: position}, nil
	}
	if !errors.Is(err, docstore.ErrDocumentTooLarge) {
		return models.RecordRef{}, err
	}

	fragments, err := s.splitAndStore(ctx, batchID, doc, reactiveCeiling(len(doc.Entries)))
	if err != nil {
		return models.RecordRef{}, fmt.Errorf("batch %s: split after oversized append failed: %w", batchID, err)
	}
	ref, ok := resolveRef(fragments, position)
	if !ok {
		return models.RecordRef{}, fmt.Errorf("batch %s: lost track of appended record after split", batchID)
	}
	return ref, nil
}

// appendCeiling computes the adaptive per-document target from the
// collection-wide record volume, capped by the hard ceiling.
func (s *BatchStore) appendCeiling(ctx context.Context) (int, error) {
	if s.target > 0 {
		return s.target, nil
	}
	docs, err := s.ds.Query(ctx, s.collection, docstore.Query{})
	if err != nil {
		return 0, fmt.Errorf("failed to size the collection: %w", err)
	}
	total := 0
	for _, d := range docs {
		if n, ok := d.Fields[batch.FieldBatchSize].(float64); ok {
			total += int(n)
		}
	}
	ceiling := batch.TargetCeiling(total)
	if ceiling > s.hardCeiling {
		ceiling = s.hardCeiling
	}
	return ceiling, nil
}
