// ABOUTME: Batch store: read-modify-write operations on batch documents
// ABOUTME: Resolves record refs, applies mutations, splits oversized documents
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/harperreed/leadbatch/batch"
	"github.com/harperreed/leadbatch/codec"
	"github.com/harperreed/leadbatch/docstore"
	"github.com/harperreed/leadbatch/models"
)

// DefaultCollection is the collection batch documents live in.
const DefaultCollection = "batches"

// Options tunes a BatchStore. Zero values fall back to defaults.
type Options struct {
	Collection    string
	HardCeiling   int           // per-document entry ceiling (default batch.HardCeiling)
	TargetCeiling int           // fixed append target; 0 means adaptive from collection volume
	GroupDelay    time.Duration // pause between batch groups in bulk operations
	OverloadDelay time.Duration // backoff after a store-overloaded rejection
	MaxRetries    int           // retries per unit of work on overload
	Now           func() time.Time
}

// BatchStore performs all mutations against batch documents. Every write
// runs under an in-process per-document mutex, so within one process each
// batch has a single writer; concurrent processes still race (last writer
// wins), which the backing store's interface cannot prevent.
type BatchStore struct {
	ds          docstore.Store
	collection  string
	hardCeiling int
	target      int
	groupDelay  time.Duration
	overload    time.Duration
	maxRetries  int
	now         func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a BatchStore over the given document store.
func New(ds docstore.Store, opts *Options) *BatchStore {
	if opts == nil {
		opts = &Options{}
	}
	s := &BatchStore{
		ds:          ds,
		collection:  opts.Collection,
		hardCeiling: opts.HardCeiling,
		target:      opts.TargetCeiling,
		groupDelay:  opts.GroupDelay,
		overload:    opts.OverloadDelay,
		maxRetries:  opts.MaxRetries,
		now:         opts.Now,
		locks:       make(map[string]*sync.Mutex),
	}
	if s.collection == "" {
		s.collection = DefaultCollection
	}
	if s.hardCeiling <= 0 {
		s.hardCeiling = batch.HardCeiling
	}
	if s.overload == 0 {
		s.overload = 30 * time.Second
	}
	if s.maxRetries <= 0 {
		s.maxRetries = 3
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Entry is one decoded record position within a batch. Lead is nil when the
// entry could not be decoded; Raw always carries the stored string so
// undecodable entries are never dropped on write-back.
type Entry struct {
	Ref  models.RecordRef
	Lead *models.Lead
	Raw  string
	Err  error
}

// lockBatch serializes writers for one batch id. Returns the unlock func.
func (s *BatchStore) lockBatch(batchID string) func() {
	s.mu.Lock()
	l, ok := s.locks[batchID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[batchID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// FetchBatch reads one batch document and decodes every entry, tagging each
// with its position. Decode failures are reported per entry, never for the
// whole batch.
func (s *BatchStore) FetchBatch(ctx context.Context, batchID string) (*batch.Document, []Entry, error) {
	fields, err := s.ds.Get(ctx, s.collection, batchID)
	if err != nil {
		return nil, nil, err
	}
	doc, err := batch.FromFields(fields)
	if err != nil {
		return nil, nil, fmt.Errorf("batch %s: %w", batchID, err)
	}
	return doc, s.decodeEntries(batchID, doc.Entries), nil
}

func (s *BatchStore) decodeEntries(batchID string, entries []string) []Entry {
	out := make([]Entry, len(entries))
	for i, raw := range entries {
		out[i] = decodeEntry(batchID, i, raw)
		if out[i].Err != nil {
			log.Printf("batch %s: skipping undecodable entry at position %d: %v", batchID, i, out[i].Err)
		}
	}
	return out
}

// decodeEntry decodes one stored entry, tagging it with its address.
func decodeEntry(batchID string, position int, raw string) Entry {
	ref := models.RecordRef{BatchID: batchID, Position: position}
	lead, err := codec.Decode(raw)
	if err != nil {
		return Entry{Ref: ref, Raw: raw, Err: err}
	}
	return Entry{Ref: ref, Lead: lead, Raw: raw}
}

// UpdateRecord applies mutate to the record at ref via a whole-document
// read-modify-write. When the persist is rejected as too large the document
// is halved and the write retried against whichever fragment now holds the
// record. The returned ref is where the record lives afterwards; it differs
// from the input only when a split moved it.
func (s *BatchStore) UpdateRecord(ctx context.Context, ref models.RecordRef, mutate func(*models.Lead) error) (models.RecordRef, error) {
	unlock := s.lockBatch(ref.BatchID)
	defer unlock()
	return s.updateLocked(ctx, ref, mutate)
}

func (s *BatchStore) updateLocked(ctx context.Context, ref models.RecordRef, mutate func(*models.Lead) error) (models.RecordRef, error) {
	fields, err := s.ds.Get(ctx, s.collection, ref.BatchID)
	if err != nil {
		return ref, err
	}
	doc, err := batch.FromFields(fields)
	if err != nil {
		return ref, fmt.Errorf("batch %s: %w", ref.BatchID, err)
	}
	if ref.Position < 0 || ref.Position >= len(doc.Entries) {
		return ref, fmt.Errorf("record %s: position out of range (batch has %d entries)", ref, len(doc.Entries))
	}

	lead, err := codec.Decode(doc.Entries[ref.Position])
	if err != nil {
		return ref, fmt.Errorf("record %s: %w", ref, err)
	}
	if err := mutate(lead); err != nil {
		return ref, err
	}
	encoded, err := codec.Encode(lead)
	if err != nil {
		return ref, fmt.Errorf("record %s: %w", ref, err)
	}
	doc.Entries[ref.Position] = encoded

	err = s.putWithRetry(ctx, ref.BatchID, doc.ToFields())
	if err == nil {
		return ref, nil
	}
	if !errors.Is(err, docstore.ErrDocumentTooLarge) {
		return ref, err
	}

	// Halve the document and land the mutated entry in whichever fragment
	// now holds its position.
	fragments, err := s.splitAndStore(ctx, ref.BatchID, doc, reactiveCeiling(len(doc.Entries)))
	if err != nil {
		return ref, fmt.Errorf("record %s: split after oversized write failed: %w", ref, err)
	}
	newRef, ok := resolveRef(fragments, ref.Position)
	if !ok {
		return ref, fmt.Errorf("record %s: lost track of position after split", ref)
	}
	return newRef, nil
}

// reactiveCeiling halves an oversized document.
func reactiveCeiling(n int) int {
	half := n / 2
	if half < 1 {
		half = 1
	}
	return half
}

// putWithRetry persists one document, backing off and retrying the same
// write on a store-overloaded rejection. Other errors return immediately.
func (s *BatchStore) putWithRetry(ctx context.Context, id string, fields docstore.Fields) error {
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			if serr := sleepCtx(ctx, s.overload); serr != nil {
				return serr
			}
		}
		err = s.ds.Put(ctx, s.collection, id, fields)
		if err == nil || !errors.Is(err, docstore.ErrStoreOverloaded) {
			return err
		}
		log.Printf("batch %s: store overloaded, retrying (%d/%d)", id, attempt+1, s.maxRetries)
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
