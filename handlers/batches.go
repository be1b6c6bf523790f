// ABOUTME: Batch administration MCP tool handlers
// ABOUTME: Implements batch_stats and rebalance_batches
package handlers

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/leadbatch/batch"
	"github.com/harperreed/leadbatch/cache"
	"github.com/harperreed/leadbatch/docstore"
	"github.com/harperreed/leadbatch/store"
)

// BatchHandlers exposes batch administration as MCP tools.
type BatchHandlers struct {
	ds         docstore.Store
	collection string
	store      *store.BatchStore
	cache      *cache.Cache
}

// NewBatchHandlers creates batch handlers. The cache may be nil.
func NewBatchHandlers(ds docstore.Store, collection string, bs *store.BatchStore, c *cache.Cache) *BatchHandlers {
	if collection == "" {
		collection = store.DefaultCollection
	}
	return &BatchHandlers{ds: ds, collection: collection, store: bs, cache: c}
}

type BatchStatsInput struct{}

type BatchStat struct {
	ID        string `json:"id"`
	Records   int    `json:"records"`
	SplitFrom string `json:"split_from,omitempty"`
}

type BatchStatsOutput struct {
	Batches      []BatchStat `json:"batches"`
	TotalRecords int         `json:"total_records"`
	OverCeiling  int         `json:"over_ceiling"`
}

// BatchStats reports per-document record counts and how many documents are
// over the hard ceiling.
func (h *BatchHandlers) BatchStats(ctx context.Context, _ *mcp.CallToolRequest, _ BatchStatsInput) (*mcp.CallToolResult, BatchStatsOutput, error) {
	docs, err := h.ds.Query(ctx, h.collection, docstore.Query{OrderByID: true, Descending: true})
	if err != nil {
		return nil, BatchStatsOutput{}, fmt.Errorf("failed to list batches: %w", err)
	}

	out := BatchStatsOutput{}
	for _, d := range docs {
		doc, err := batch.FromFields(d.Fields)
		if err != nil {
			continue
		}
		out.Batches = append(out.Batches, BatchStat{
			ID:        d.ID,
			Records:   len(doc.Entries),
			SplitFrom: doc.SplitFrom,
		})
		out.TotalRecords += len(doc.Entries)
		if len(doc.Entries) > batch.HardCeiling {
			out.OverCeiling++
		}
	}
	return nil, out, nil
}

type RebalanceInput struct{}

type RebalanceOutput struct {
	Split int `json:"split"`
}

// RebalanceBatches proactively splits every document over the hard ceiling.
func (h *BatchHandlers) RebalanceBatches(ctx context.Context, _ *mcp.CallToolRequest, _ RebalanceInput) (*mcp.CallToolResult, RebalanceOutput, error) {
	split, err := h.store.Rebalance(ctx)
	if err != nil {
		return nil, RebalanceOutput{Split: split}, fmt.Errorf("rebalance failed: %w", err)
	}
	if h.cache != nil && split > 0 {
		_ = h.cache.Invalidate()
	}
	return nil, RebalanceOutput{Split: split}, nil
}
