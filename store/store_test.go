// ABOUTME: Tests for batch store read-modify-write operations
// ABOUTME: Shared helpers for seeding batch documents in tests
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/leadbatch/batch"
	"github.com/harperreed/leadbatch/codec"
	"github.com/harperreed/leadbatch/docstore"
	"github.com/harperreed/leadbatch/models"
)

func encodeLead(t *testing.T, lead *models.Lead) string {
	t.Helper()
	encoded, err := codec.Encode(lead)
	require.NoError(t, err)
	return encoded
}

func encodeNamed(t *testing.T, name string) string {
	t.Helper()
	return encodeLead(t, &models.Lead{Name: name})
}

// seedBatch writes a batch document directly, bypassing the store's append
// placement.
func seedBatch(t *testing.T, ds docstore.Store, id string, entries []string) {
	t.Helper()
	doc := &batch.Document{Entries: entries}
	require.NoError(t, ds.Put(context.Background(), DefaultCollection, id, doc.ToFields()))
}

func namedEntries(t *testing.T, prefix string, n int) []string {
	t.Helper()
	entries := make([]string, n)
	for i := range entries {
		entries[i] = encodeNamed(t, fmt.Sprintf("%s-%03d", prefix, i))
	}
	return entries
}

func TestFetchBatchDecodesEntries(t *testing.T) {
	ds, cleanup := docstore.NewTestStore(t)
	defer cleanup()
	seedBatch(t, ds, "batch_1", namedEntries(t, "lead", 3))

	s := New(ds, nil)
	doc, entries, err := s.FetchBatch(context.Background(), "batch_1")
	require.NoError(t, err)
	assert.Len(t, doc.Entries, 3)
	require.Len(t, entries, 3)

	for i, e := range entries {
		require.NoError(t, e.Err)
		require.NotNil(t, e.Lead)
		assert.Equal(t, fmt.Sprintf("lead-%03d", i), e.Lead.Name)
		assert.Equal(t, models.RecordRef{BatchID: "batch_1", Position: i}, e.Ref)
	}
}

func TestFetchBatchNotFound(t *testing.T) {
	ds, cleanup := docstore.NewTestStore(t)
	defer cleanup()

	s := New(ds, nil)
	_, _, err := s.FetchBatch(context.Background(), "batch_99")
	assert.True(t, errors.Is(err, docstore.ErrNotFound))
}

func TestFetchBatchIsolatesCorruptEntries(t *testing.T) {
	ds, cleanup := docstore.NewTestStore(t)
	defer cleanup()
	seedBatch(t, ds, "batch_1", []string{
		encodeNamed(t, "good-one"),
		"!!!corrupt!!!",
		encodeNamed(t, "good-two"),
	})

	s := New(ds, nil)
	_, entries, err := s.FetchBatch(context.Background(), "batch_1")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.NoError(t, entries[0].Err)
	assert.Equal(t, "good-one", entries[0].Lead.Name)

	// The corrupt entry is reported in place, raw preserved, neighbors
	// unaffected.
	assert.Error(t, entries[1].Err)
	assert.Nil(t, entries[1].Lead)
	assert.Equal(t, "!!!corrupt!!!", entries[1].Raw)

	assert.NoError(t, entries[2].Err)
	assert.Equal(t, "good-two", entries[2].Lead.Name)
}

func TestFetchBatchLegacyMapForm(t *testing.T) {
	ds, cleanup := docstore.NewTestStore(t)
	defer cleanup()

	// Legacy document: companies stored as a string-keyed map.
	fields := docstore.Fields{
		batch.FieldCompanies: map[string]any{
			"1": encodeNamed(t, "second"),
			"0": encodeNamed(t, "first"),
			"2": encodeNamed(t, "third"),
		},
	}
	require.NoError(t, ds.Put(context.Background(), DefaultCollection, "batch_1", fields))

	s := New(ds, nil)
	_, entries, err := s.FetchBatch(context.Background(), "batch_1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "first", entries[0].Lead.Name)
	assert.Equal(t, "second", entries[1].Lead.Name)
	assert.Equal(t, "third", entries[2].Lead.Name)
}

func TestUpdateRecordAddressStability(t *testing.T) {
	ds, cleanup := docstore.NewTestStore(t)
	defer cleanup()
	seedBatch(t, ds, "batch_1", namedEntries(t, "lead", 5))

	s := New(ds, nil)
	ref := models.RecordRef{BatchID: "batch_1", Position: 2}

	newRef, err := s.UpdateRecord(context.Background(), ref, func(lead *models.Lead) error {
		lead.Notes = "updated in place"
		return nil
	})
	require.NoError(t, err)

	// No split happened, so the record keeps its address and neighbors
	// keep theirs.
	assert.Equal(t, ref, newRef)

	_, entries, err := s.FetchBatch(context.Background(), "batch_1")
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, "updated in place", entries[2].Lead.Notes)
	assert.Equal(t, "lead-001", entries[1].Lead.Name)
	assert.Equal(t, "lead-003", entries[3].Lead.Name)
}

func TestUpdateRecordPositionOutOfRange(t *testing.T) {
	ds, cleanup := docstore.NewTestStore(t)
	defer cleanup()
	seedBatch(t, ds, "batch_1", namedEntries(t, "lead", 2))

	s := New(ds, nil)
	_, err := s.UpdateRecord(context.Background(), models.RecordRef{BatchID: "batch_1", Position: 7}, func(*models.Lead) error {
		return nil
	})
	assert.ErrorContains(t, err, "out of range")
}

func TestUpdateRecordCorruptEntry(t *testing.T) {
	ds, cleanup := docstore.NewTestStore(t)
	defer cleanup()
	seedBatch(t, ds, "batch_1", []string{"not a record"})

	s := New(ds, nil)
	_, err := s.UpdateRecord(context.Background(), models.RecordRef{BatchID: "batch_1", Position: 0}, func(*models.Lead) error {
		return nil
	})
	var decodeErr *codec.RecordDecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestUpdateRecordMutateErrorAborts(t *testing.T) {
	ds, cleanup := docstore.NewTestStore(t)
	defer cleanup()
	seedBatch(t, ds, "batch_1", namedEntries(t, "lead", 1))

	s := New(ds, nil)
	boom := errors.New("boom")
	_, err := s.UpdateRecord(context.Background(), models.RecordRef{BatchID: "batch_1", Position: 0}, func(*models.Lead) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// Nothing persisted.
	_, entries, err := s.FetchBatch(context.Background(), "batch_1")
	require.NoError(t, err)
	assert.Equal(t, "lead-000", entries[0].Lead.Name)
}

// flakyStore rejects the first n Puts as overloaded, then delegates.
type flakyStore struct {
	docstore.Store
	rejections int
	puts       int
}

func (f *flakyStore) Put(ctx context.Context, collection, id string, fields docstore.Fields) error {
	f.puts++
	if f.rejections > 0 {
		f.rejections--
		return docstore.ErrStoreOverloaded
	}
	return f.Store.Put(ctx, collection, id, fields)
}

func TestPutRetriesOnOverload(t *testing.T) {
	ds, cleanup := docstore.NewTestStore(t)
	defer cleanup()
	seedBatch(t, ds, "batch_1", namedEntries(t, "lead", 1))

	flaky := &flakyStore{Store: ds, rejections: 2}
	s := New(flaky, &Options{OverloadDelay: time.Millisecond})

	_, err := s.UpdateRecord(context.Background(), models.RecordRef{BatchID: "batch_1", Position: 0}, func(lead *models.Lead) error {
		lead.Notes = "landed eventually"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, flaky.puts)

	_, entries, err := s.FetchBatch(context.Background(), "batch_1")
	require.NoError(t, err)
	assert.Equal(t, "landed eventually", entries[0].Lead.Notes)
}

func TestPutGivesUpAfterMaxRetries(t *testing.T) {
	ds, cleanup := docstore.NewTestStore(t)
	defer cleanup()
	seedBatch(t, ds, "batch_1", namedEntries(t, "lead", 1))

	flaky := &flakyStore{Store: ds, rejections: 100}
	s := New(flaky, &Options{OverloadDelay: time.Millisecond, MaxRetries: 2})

	_, err := s.UpdateRecord(context.Background(), models.RecordRef{BatchID: "batch_1", Position: 0}, func(lead *models.Lead) error {
		lead.Notes = "never lands"
		return nil
	})
	assert.True(t, errors.Is(err, docstore.ErrStoreOverloaded))
	assert.Equal(t, 3, flaky.puts) // initial attempt + 2 retries
}

func TestUpdateRecordSplitsOversizedDocument(t *testing.T) {
	// Small put ceiling so the oversize path triggers without megabyte
	// documents. 60 small entries fit; adding a long notes field does not.
	ds, cleanup := docstore.NewTestStoreWithLimit(t, 4096)
	defer cleanup()
	seedBatch(t, ds, "batch_1", namedEntries(t, "lead", 60))

	s := New(ds, nil)
	ref := models.RecordRef{BatchID: "batch_1", Position: 45}

	newRef, err := s.UpdateRecord(context.Background(), ref, func(lead *models.Lead) error {
		lead.Notes = strings.Repeat("x", 1500)
		return nil
	})
	require.NoError(t, err)

	// The document halved; position 45 moved into the suffix fragment at
	// position 45-30.
	assert.NotEqual(t, ref, newRef)
	assert.Equal(t, 15, newRef.Position)

	_, entries, err := s.FetchBatch(context.Background(), newRef.BatchID)
	require.NoError(t, err)
	require.Greater(t, len(entries), newRef.Position)
	moved := entries[newRef.Position]
	require.NoError(t, moved.Err)
	assert.Equal(t, "lead-045", moved.Lead.Name)
	assert.Equal(t, strings.Repeat("x", 1500), moved.Lead.Notes)

	// Split completeness: every original record is still present exactly
	// once across all documents, and the prefix kept the original id with
	// its order intact.
	docs, err := ds.Query(context.Background(), DefaultCollection, docstore.Query{OrderByID: true})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	seen := make(map[string]int)
	for _, d := range docs {
		doc, err := batch.FromFields(d.Fields)
		require.NoError(t, err)
		for _, raw := range doc.Entries {
			lead, err := codec.Decode(raw)
			require.NoError(t, err)
			seen[lead.Name]++
		}
	}
	require.Len(t, seen, 60)
	for name, count := range seen {
		assert.Equal(t, 1, count, "record %s", name)
	}

	prefix, err := ds.Get(context.Background(), DefaultCollection, "batch_1")
	require.NoError(t, err)
	prefixDoc, err := batch.FromFields(prefix)
	require.NoError(t, err)
	require.Len(t, prefixDoc.Entries, 30)
	for i, raw := range prefixDoc.Entries {
		lead, err := codec.Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("lead-%03d", i), lead.Name)
	}
}
