// ABOUTME: Tests for the lead MCP tool handlers
// ABOUTME: End-to-end flows over an isolated document store
package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/leadbatch/batch"
	"github.com/harperreed/leadbatch/cache"
	"github.com/harperreed/leadbatch/codec"
	"github.com/harperreed/leadbatch/docstore"
	"github.com/harperreed/leadbatch/models"
	"github.com/harperreed/leadbatch/store"
)

type fixture struct {
	ds    docstore.Store
	store *store.BatchStore
	leads *LeadHandlers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ds, cleanup := docstore.NewTestStore(t)
	t.Cleanup(cleanup)

	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	bs := store.New(ds, nil)
	reader := store.NewReader(ds, "")
	return &fixture{
		ds:    ds,
		store: bs,
		leads: NewLeadHandlers(bs, reader, c),
	}
}

func TestAddAndFindLead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, added, err := f.leads.AddLead(ctx, nil, AddLeadInput{
		Name:   "Acme Corp",
		Email:  "cto@acme.com",
		Status: models.StatusHot,
	})
	require.NoError(t, err)
	require.NotEmpty(t, added.Ref)

	_, found, err := f.leads.FindLeads(ctx, nil, FindLeadsInput{Query: "acme"})
	require.NoError(t, err)
	require.Equal(t, 1, found.Total)
	assert.Equal(t, added.Ref, found.Leads[0].Ref)
	assert.Equal(t, "Acme Corp", found.Leads[0].Name)
	assert.Equal(t, models.StatusHot, found.Leads[0].Status)
}

func TestAddLeadValidationFailure(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.leads.AddLead(context.Background(), nil, AddLeadInput{Email: "x@y.com"})
	assert.ErrorContains(t, err, "name is required")
}

func TestAddLeadDuplicateDetection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, first, err := f.leads.AddLead(ctx, nil, AddLeadInput{Name: "Acme", Email: "cto@acme.com"})
	require.NoError(t, err)

	// Same email is rejected by default.
	_, out, err := f.leads.AddLead(ctx, nil, AddLeadInput{Name: "Acme Again", Email: "CTO@acme.com"})
	require.Error(t, err)
	assert.Equal(t, first.Ref, out.DuplicateRef)

	// allow_duplicate overrides the advisory block.
	_, out, err = f.leads.AddLead(ctx, nil, AddLeadInput{
		Name: "Acme Again", Email: "CTO@acme.com", AllowDup: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Ref)
	assert.Equal(t, first.Ref, out.DuplicateRef)
}

func TestUpdateLeadStatusSetsTimestampOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, added, err := f.leads.AddLead(ctx, nil, AddLeadInput{Name: "Acme", Status: models.StatusHot})
	require.NoError(t, err)

	ref, err := models.ParseRecordRef(added.Ref)
	require.NoError(t, err)
	_, entries, err := f.store.FetchBatch(ctx, ref.BatchID)
	require.NoError(t, err)
	firstHot := entries[ref.Position].Lead.HotAt
	require.NotNil(t, firstHot)

	// hot -> warm -> hot: hotAt keeps its original value.
	_, out, err := f.leads.UpdateLeadStatus(ctx, nil, UpdateLeadStatusInput{Ref: added.Ref, Status: models.StatusWarm})
	require.NoError(t, err)
	_, out, err = f.leads.UpdateLeadStatus(ctx, nil, UpdateLeadStatusInput{Ref: out.Ref, Status: models.StatusHot})
	require.NoError(t, err)

	finalRef, err := models.ParseRecordRef(out.Ref)
	require.NoError(t, err)
	_, entries, err = f.store.FetchBatch(ctx, finalRef.BatchID)
	require.NoError(t, err)
	lead := entries[finalRef.Position].Lead
	assert.Equal(t, models.StatusHot, lead.Status)
	require.NotNil(t, lead.HotAt)
	assert.True(t, lead.HotAt.Equal(*firstHot))
	assert.NotNil(t, lead.WarmAt)
}

func TestFindLeadsMixedEncodingFormats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// One current-format entry, one legacy base64-of-raw-JSON entry, side
	// by side in the same document.
	current, err := codec.Encode(&models.Lead{Name: "Modern Co", Status: models.StatusWarm})
	require.NoError(t, err)
	raw, err := json.Marshal(map[string]any{"company": "Legacy Co", "status": "cold"})
	require.NoError(t, err)
	legacy := base64.StdEncoding.EncodeToString(raw)

	doc := &batch.Document{Entries: []string{current, legacy}}
	require.NoError(t, f.ds.Put(ctx, store.DefaultCollection, "batch_1", doc.ToFields()))

	_, found, err := f.leads.FindLeads(ctx, nil, FindLeadsInput{})
	require.NoError(t, err)
	require.Equal(t, 2, found.Total)

	names := []string{found.Leads[0].Name, found.Leads[1].Name}
	assert.Contains(t, names, "Modern Co")
	assert.Contains(t, names, "Legacy Co")
}

func TestAssignLeadsReportsPartialSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, a, err := f.leads.AddLead(ctx, nil, AddLeadInput{Name: "One"})
	require.NoError(t, err)
	_, b, err := f.leads.AddLead(ctx, nil, AddLeadInput{Name: "Two"})
	require.NoError(t, err)

	_, out, err := f.leads.AssignLeads(ctx, nil, AssignLeadsInput{
		Refs:   []string{a.Ref, b.Ref, "batch_99_0", "garbage"},
		UserID: "u42",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Succeeded)
	assert.Equal(t, 4, out.Total)
	assert.Equal(t, "2/4 succeeded", out.Summary)
	assert.Len(t, out.Failures, 2)

	_, found, err := f.leads.FindLeads(ctx, nil, FindLeadsInput{AssignedTo: "u42"})
	require.NoError(t, err)
	assert.Equal(t, 2, found.Total)
}

func TestAddFollowupGeneratesKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, added, err := f.leads.AddLead(ctx, nil, AddLeadInput{Name: "Acme"})
	require.NoError(t, err)

	_, out, err := f.leads.AddFollowup(ctx, nil, AddFollowupInput{
		Ref:     added.Ref,
		Date:    "2025-12-01",
		Time:    "10:00",
		Remarks: "intro call",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Key)

	ref, err := models.ParseRecordRef(out.Ref)
	require.NoError(t, err)
	_, entries, err := f.store.FetchBatch(ctx, ref.BatchID)
	require.NoError(t, err)
	lead := entries[ref.Position].Lead
	require.Len(t, lead.Followups, 1)
	assert.Equal(t, out.Key, lead.Followups[0].Key)
	assert.Equal(t, "intro call", lead.Followups[0].Remarks)
}

func TestDeleteLeads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, a, err := f.leads.AddLead(ctx, nil, AddLeadInput{Name: "Doomed"})
	require.NoError(t, err)
	_, _, err = f.leads.AddLead(ctx, nil, AddLeadInput{Name: "Spared"})
	require.NoError(t, err)

	_, out, err := f.leads.DeleteLeads(ctx, nil, DeleteLeadsInput{Refs: []string{a.Ref}})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Removed)

	_, found, err := f.leads.FindLeads(ctx, nil, FindLeadsInput{})
	require.NoError(t, err)
	require.Equal(t, 1, found.Total)
	assert.Equal(t, "Spared", found.Leads[0].Name)
}

func TestWriteInvalidatesCachedReads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.leads.AddLead(ctx, nil, AddLeadInput{Name: "First"})
	require.NoError(t, err)

	// Prime the cache.
	_, found, err := f.leads.FindLeads(ctx, nil, FindLeadsInput{})
	require.NoError(t, err)
	require.Equal(t, 1, found.Total)

	// A write after the cached read must be visible to the next read.
	_, _, err = f.leads.AddLead(ctx, nil, AddLeadInput{Name: "Second"})
	require.NoError(t, err)

	_, found, err = f.leads.FindLeads(ctx, nil, FindLeadsInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, found.Total)
}
