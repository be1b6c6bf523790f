// ABOUTME: Bulk operations: grouped assignment and predicate deletes
// ABOUTME: One write per touched batch, with staged fallbacks on oversize
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/harperreed/leadbatch/batch"
	"github.com/harperreed/leadbatch/codec"
	"github.com/harperreed/leadbatch/docstore"
	"github.com/harperreed/leadbatch/models"
)

// Failure reports one record that a bulk operation could not process.
type Failure struct {
	Ref    string
	Reason string
}

// BulkResult reports partial success of a bulk operation. Bulk operations
// never throw away the whole run for individual record failures.
type BulkResult struct {
	Total     int
	Succeeded int
	Failed    []Failure
}

// String renders the "N/M succeeded" summary shown to the caller.
func (r *BulkResult) String() string {
	return fmt.Sprintf("%d/%d succeeded", r.Succeeded, r.Total)
}

func (r *BulkResult) fail(ref models.RecordRef, reason string) {
	r.Failed = append(r.Failed, Failure{Ref: ref.String(), Reason: reason})
}

// BulkAssign assigns every referenced record to userID. References are
// grouped by home batch so each touched document is fetched and persisted
// once, not once per record. Batch groups are processed sequentially with
// the configured delay between them to respect the store's write-rate
// limits. A group whose single write is rejected as too large falls back to
// splitting the document and persisting one record at a time.
func (s *BatchStore) BulkAssign(ctx context.Context, refs []models.RecordRef, userID, assignedBy string) (*BulkResult, error) {
	result := &BulkResult{Total: len(refs)}
	at := s.now().UTC()

	groups := make(map[string][]int)
	for _, ref := range refs {
		groups[ref.BatchID] = append(groups[ref.BatchID], ref.Position)
	}
	batchIDs := make([]string, 0, len(groups))
	for id := range groups {
		batchIDs = append(batchIDs, id)
	}
	sort.Strings(batchIDs)

	for i, batchID := range batchIDs {
		if i > 0 {
			if err := sleepCtx(ctx, s.groupDelay); err != nil {
				return result, err
			}
		}
		s.assignGroup(ctx, batchID, groups[batchID], userID, assignedBy, at, result)
	}
	return result, nil
}

func assignLead(lead *models.Lead, userID, assignedBy string, at time.Time) {
	lead.AssignedTo = userID
	lead.AssignedBy = assignedBy
	t := at
	lead.AssignedAt = &t
	lead.UpdatedAt = &t
}

// assignGroup applies all position updates for one batch and persists the
// document once. Individual decode failures are reported and skipped; the
// rest of the group still commits.
func (s *BatchStore) assignGroup(ctx context.Context, batchID string, positions []int, userID, assignedBy string, at time.Time, result *BulkResult) {
	unlock := s.lockBatch(batchID)
	locked := true
	defer func() {
		if locked {
			unlock()
		}
	}()

	fields, err := s.ds.Get(ctx, s.collection, batchID)
	if err != nil {
		for _, pos := range positions {
			result.fail(models.RecordRef{BatchID: batchID, Position: pos}, "batch not found")
		}
		return
	}
	doc, err := batch.FromFields(fields)
	if err != nil {
		for _, pos := range positions {
			result.fail(models.RecordRef{BatchID: batchID, Position: pos}, err.Error())
		}
		return
	}

	var staged []int
	for _, pos := range positions {
		ref := models.RecordRef{BatchID: batchID, Position: pos}
		if pos < 0 || pos >= len(doc.Entries) {
			result.fail(ref, "position out of range")
			continue
		}
		lead, err := codec.Decode(doc.Entries[pos])
		if err != nil {
			result.fail(ref, err.Error())
			continue
		}
		assignLead(lead, userID, assignedBy, at)
		encoded, err := codec.Encode(lead)
		if err != nil {
			result.fail(ref, err.Error())
			continue
		}
		doc.Entries[pos] = encoded
		staged = append(staged, pos)
	}
	if len(staged) == 0 {
		return
	}

	err = s.putWithRetry(ctx, batchID, doc.ToFields())
	if err == nil {
		result.Succeeded += len(staged)
		return
	}
	if !errors.Is(err, docstore.ErrDocumentTooLarge) {
		for _, pos := range staged {
			result.fail(models.RecordRef{BatchID: batchID, Position: pos}, err.Error())
		}
		return
	}

	// The combined commit is too big. Split the document as it was before
	// this group's mutations, then persist each record individually against
	// its post-split address.
	fresh, err := s.ds.Get(ctx, s.collection, batchID)
	if err != nil {
		for _, pos := range staged {
			result.fail(models.RecordRef{BatchID: batchID, Position: pos}, "batch vanished during fallback")
		}
		return
	}
	freshDoc, err := batch.FromFields(fresh)
	if err != nil {
		for _, pos := range staged {
			result.fail(models.RecordRef{BatchID: batchID, Position: pos}, err.Error())
		}
		return
	}
	fragments, err := s.splitAndStore(ctx, batchID, freshDoc, reactiveCeiling(len(freshDoc.Entries)))
	if err != nil {
		for _, pos := range staged {
			result.fail(models.RecordRef{BatchID: batchID, Position: pos}, fmt.Sprintf("split fallback failed: %v", err))
		}
		return
	}

	// Per-record writes go through UpdateRecord, which takes the fragment
	// locks itself.
	unlock()
	locked = false

	for _, pos := range staged {
		ref := models.RecordRef{BatchID: batchID, Position: pos}
		newRef, ok := resolveRef(fragments, pos)
		if !ok {
			result.fail(ref, "position moved during split; re-resolve and retry")
			continue
		}
		if _, err := s.UpdateRecord(ctx, newRef, func(lead *models.Lead) error {
			assignLead(lead, userID, assignedBy, at)
			return nil
		}); err != nil {
			result.fail(ref, err.Error())
			continue
		}
		result.Succeeded++
	}
}

// DeleteWhere removes every record matching pred across all batches. Each
// batch is rewritten once with the surviving entries, or deleted outright
// when nothing survives. Entries that cannot be decoded are always kept
// unchanged rather than destroyed by a decode error. Returns the number of
// records removed.
func (s *BatchStore) DeleteWhere(ctx context.Context, pred func(models.RecordRef, *models.Lead) bool) (int, error) {
	docs, err := s.ds.Query(ctx, s.collection, docstore.Query{OrderByID: true})
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, d := range docs {
		n, err := s.deleteInBatch(ctx, d.ID, pred)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				log.Printf("delete: batch %s vanished, skipping", d.ID)
				continue
			}
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

func (s *BatchStore) deleteInBatch(ctx context.Context, batchID string, pred func(models.RecordRef, *models.Lead) bool) (int, error) {
	unlock := s.lockBatch(batchID)
	defer unlock()

	fields, err := s.ds.Get(ctx, s.collection, batchID)
	if err != nil {
		return 0, err
	}
	doc, err := batch.FromFields(fields)
	if err != nil {
		return 0, fmt.Errorf("batch %s: %w", batchID, err)
	}

	kept := make([]string, 0, len(doc.Entries))
	removed := 0
	for i, raw := range doc.Entries {
		lead, err := codec.Decode(raw)
		if err != nil {
			// Undecodable entries are retained as-is.
			log.Printf("delete: batch %s: keeping undecodable entry at position %d: %v", batchID, i, err)
			kept = append(kept, raw)
			continue
		}
		if pred(models.RecordRef{BatchID: batchID, Position: i}, lead) {
			removed++
			continue
		}
		kept = append(kept, raw)
	}
	if removed == 0 {
		return 0, nil
	}

	if len(kept) == 0 {
		if err := s.ds.Delete(ctx, s.collection, batchID); err != nil {
			return 0, err
		}
		return removed, nil
	}

	doc.Entries = kept
	if err := s.putWithRetry(ctx, batchID, doc.ToFields()); err != nil {
		return 0, err
	}
	return removed, nil
}
