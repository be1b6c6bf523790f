// ABOUTME: MCP server subcommand
// ABOUTME: Exposes lead and batch operations as MCP tools over stdio
package cli

import (
	"context"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/leadbatch/handlers"
	"github.com/harperreed/leadbatch/store"
)

// MCPCommand starts the MCP server on stdio.
func MCPCommand(app *App) error {
	log.Println("Starting leadbatch MCP server...")

	leadHandlers := handlers.NewLeadHandlers(app.Store, app.Reader, app.Cache)
	batchHandlers := handlers.NewBatchHandlers(app.DS, store.DefaultCollection, app.Store, app.Cache)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "leadbatch",
		Version: "0.1.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_lead",
		Description: "Add a new company lead to the pipeline",
	}, leadHandlers.AddLead)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_leads",
		Description: "Search leads by name, contact, status, or assignee",
	}, leadHandlers.FindLeads)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_lead_status",
		Description: "Move a lead to a new pipeline status (hot/warm/cold/called/onboarded/dead)",
	}, leadHandlers.UpdateLeadStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "assign_leads",
		Description: "Bulk-assign leads to a user, grouped one write per batch",
	}, leadHandlers.AssignLeads)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_followup",
		Description: "Schedule a follow-up on a lead",
	}, leadHandlers.AddFollowup)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_leads",
		Description: "Delete leads by their composite record ids",
	}, leadHandlers.DeleteLeads)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "batch_stats",
		Description: "Report per-batch record counts and oversize warnings",
	}, batchHandlers.BatchStats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rebalance_batches",
		Description: "Proactively split every batch document over the record ceiling",
	}, batchHandlers.RebalanceBatches)

	return server.Run(context.Background(), &mcp.StdioTransport{})
}
