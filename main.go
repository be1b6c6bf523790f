// ABOUTME: Entry point for the leadbatch MCP server and CLI
// ABOUTME: Routes to MCP server or CLI commands based on arguments
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/harperreed/leadbatch/cli"
	"github.com/harperreed/leadbatch/docstore"
)

const version = "0.1.0"

func main() {
	showVersion := flag.Bool("version", false, "Show version and exit")

	// Parse global flags but don't fail on unknown (for subcommands)
	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("leadbatch version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	command := args[0]
	commandArgs := args[1:]
	ctx := context.Background()

	// Auth doesn't need the document store.
	if command == "auth" {
		if err := cli.AuthCommand(ctx, commandArgs); err != nil {
			log.Fatalf("auth failed: %v", err)
		}
		return
	}

	cfg, err := docstore.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	ds, err := docstore.OpenCharmStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open document store: %v", err)
	}
	app := cli.NewApp(ds, cfg)
	defer app.Close()

	if err := route(ctx, app, command, commandArgs); err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

func route(ctx context.Context, app *cli.App, command string, args []string) error {
	switch command {
	case "mcp":
		return cli.MCPCommand(app)

	case "leads":
		if len(args) == 0 {
			printUsage()
			return nil
		}
		sub, subArgs := args[0], args[1:]
		switch sub {
		case "list":
			return cli.LeadsListCommand(ctx, app, subArgs)
		case "add":
			return cli.LeadsAddCommand(ctx, app, subArgs)
		case "status":
			return cli.LeadsStatusCommand(ctx, app, subArgs)
		case "assign":
			return cli.LeadsAssignCommand(ctx, app, subArgs)
		case "delete":
			return cli.LeadsDeleteCommand(ctx, app, subArgs)
		}
		return fmt.Errorf("unknown leads subcommand %q", sub)

	case "followups":
		if len(args) == 0 {
			printUsage()
			return nil
		}
		sub, subArgs := args[0], args[1:]
		if sub == "add" {
			return cli.FollowupAddCommand(ctx, app, subArgs)
		}
		return fmt.Errorf("unknown followups subcommand %q", sub)

	case "batches":
		if len(args) == 0 {
			printUsage()
			return nil
		}
		sub, subArgs := args[0], args[1:]
		switch sub {
		case "list":
			return cli.BatchesListCommand(ctx, app, subArgs)
		case "rebalance":
			return cli.BatchesRebalanceCommand(ctx, app, subArgs)
		}
		return fmt.Errorf("unknown batches subcommand %q", sub)

	case "cache":
		if len(args) > 0 && args[0] == "clear" {
			return cli.CacheClearCommand(ctx, app, args[1:])
		}
		return fmt.Errorf("unknown cache subcommand")
	}

	printUsage()
	return fmt.Errorf("unknown command %q", command)
}

func printUsage() {
	fmt.Printf(`leadbatch %s - batched lead store

USAGE:
  leadbatch [flags] <command>

FLAGS:
  -version                  Show version and exit

COMMANDS:
  leadbatch mcp             Start the MCP server on stdio

  leadbatch leads list      List leads across all batches
    -status <status>          Filter by pipeline status
    -assigned-to <user>       Filter by assigned user id
    -limit <n>                Max results (default: 50)

  leadbatch leads add       Add a new lead
    -name <name>              Company name (required)
    -industry <industry>      Industry or sector
    -contact <name>           Primary contact name
    -phone <phone>            Contact phone
    -email <email>            Contact email
    -status <status>          Initial status (default: cold)
    -source <source>          Lead source
    -force                    Add even when a duplicate is detected

  leadbatch leads status    Change a lead's pipeline status
    -ref <batchId_position>   Record to update (required)
    -to <status>              New status (required)

  leadbatch leads assign    Bulk-assign leads to a user
    -user <id>                Assignee (required)
    -by <id>                  Assigner
    -refs <ref,ref,...>       Records to assign (required)

  leadbatch leads delete    Delete leads
    -refs <ref,ref,...>       Records to delete (required)

  leadbatch followups add   Schedule a follow-up
    -ref <batchId_position>   Record to update (required)
    -date <YYYY-MM-DD>        Follow-up date (required)
    -time <HH:MM>             Follow-up time (required)
    -remarks <text>           Notes
    -template <name>          Message template
    -calendar                 Create a linked Google Calendar event

  leadbatch batches list    Show batch documents and record counts
  leadbatch batches rebalance  Split batches over the record ceiling

  leadbatch cache clear     Drop the local record-set cache

  leadbatch auth            Connect Google Calendar
    -code <code>              Authorization code from the consent page

EXAMPLES:
  # Start MCP server for Claude Desktop
  leadbatch mcp

  # Add a lead and mark it hot
  leadbatch leads add -name "Acme Corp" -email "cto@acme.com" -status hot

  # Assign three leads to a recruiter
  leadbatch leads assign -user u42 -refs batch_3_0,batch_3_7,batch_5_2

`, version)
}
