// ABOUTME: Lead management CLI commands
// ABOUTME: Commands for listing, adding, status changes, assignment, deletion
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/harperreed/leadbatch/models"
	"github.com/harperreed/leadbatch/store"
	"github.com/harperreed/leadbatch/validate"
)

// LeadsListCommand lists leads from every batch document.
func LeadsListCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	status := fs.String("status", "", "Filter by pipeline status")
	assignedTo := fs.String("assigned-to", "", "Filter by assigned user id")
	limit := fs.Int("limit", 50, "Maximum number of leads to show")
	_ = fs.Parse(args)

	entries, err := app.Reader.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load leads: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "REF\tNAME\tSTATUS\tASSIGNED\tCONTACT\tFOLLOWUPS")
	_, _ = fmt.Fprintln(w, "---\t----\t------\t--------\t-------\t---------")

	shown := 0
	for _, e := range entries {
		if *status != "" && e.Lead.Status != *status {
			continue
		}
		if *assignedTo != "" && e.Lead.AssignedTo != *assignedTo {
			continue
		}
		if shown >= *limit {
			break
		}
		shown++
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			e.Ref, e.Lead.Name, e.Lead.Status, e.Lead.AssignedTo,
			e.Lead.ContactPerson, len(e.Lead.Followups))
	}
	_ = w.Flush()
	fmt.Printf("\n%d of %d leads\n", shown, len(entries))
	return nil
}

// LeadsAddCommand validates and stores a new lead.
func LeadsAddCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	name := fs.String("name", "", "Company name (required)")
	industry := fs.String("industry", "", "Industry or sector")
	contact := fs.String("contact", "", "Primary contact name")
	phone := fs.String("phone", "", "Contact phone")
	email := fs.String("email", "", "Contact email")
	status := fs.String("status", models.StatusCold, "Initial pipeline status")
	source := fs.String("source", "", "Where this lead came from")
	force := fs.Bool("force", false, "Proceed even when a duplicate is detected")
	_ = fs.Parse(args)

	now := time.Now().UTC()
	lead := models.Lead{
		Name:          *name,
		Industry:      *industry,
		ContactPerson: *contact,
		Phone:         *phone,
		Email:         *email,
		Source:        *source,
		CreatedAt:     &now,
		UpdatedAt:     &now,
	}
	lead, err := models.ApplyStatusTransition(lead, *status, now)
	if err != nil {
		return err
	}
	if err := validate.Lead(&lead); err != nil {
		return err
	}

	if entries, err := app.Reader.LoadAll(ctx); err == nil {
		leads := make([]models.Lead, len(entries))
		refs := make([]models.RecordRef, len(entries))
		for i, e := range entries {
			leads[i] = *e.Lead
			refs[i] = e.Ref
		}
		if dup := validate.FindDuplicate(&lead, leads, refs); dup != nil {
			if !*force {
				return fmt.Errorf("possible duplicate of %s (use -force to add anyway)", dup)
			}
			fmt.Printf("Warning: possible duplicate of %s\n", dup)
		}
	}

	ref, err := app.Store.AppendRecord(ctx, &lead)
	if err != nil {
		return fmt.Errorf("failed to store lead: %w", err)
	}
	app.invalidate()

	fmt.Printf("Added %s as %s\n", lead.Name, ref)
	return nil
}

// LeadsStatusCommand moves a lead through the pipeline.
func LeadsStatusCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	refArg := fs.String("ref", "", "Composite record id (batchId_position)")
	status := fs.String("to", "", "New pipeline status")
	_ = fs.Parse(args)

	ref, err := models.ParseRecordRef(*refArg)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	newRef, err := app.Store.UpdateRecord(ctx, ref, func(lead *models.Lead) error {
		updated, err := models.ApplyStatusTransition(*lead, *status, now)
		if err != nil {
			return err
		}
		*lead = updated
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	app.invalidate()

	if newRef != ref {
		fmt.Printf("Updated %s -> %s (record moved to %s after split)\n", ref, *status, newRef)
	} else {
		fmt.Printf("Updated %s -> %s\n", ref, *status)
	}
	return nil
}

// LeadsAssignCommand bulk-assigns leads, one document write per touched
// batch, reporting partial success.
func LeadsAssignCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("assign", flag.ExitOnError)
	user := fs.String("user", "", "User id to assign the leads to")
	by := fs.String("by", "", "User performing the assignment")
	refsArg := fs.String("refs", "", "Comma-separated composite record ids")
	_ = fs.Parse(args)

	if *user == "" || *refsArg == "" {
		return fmt.Errorf("-user and -refs are required")
	}

	var refs []models.RecordRef
	var failures []store.Failure
	for _, raw := range strings.Split(*refsArg, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		ref, err := models.ParseRecordRef(raw)
		if err != nil {
			failures = append(failures, store.Failure{Ref: raw, Reason: err.Error()})
			continue
		}
		refs = append(refs, ref)
	}

	result, err := app.Store.BulkAssign(ctx, refs, *user, *by)
	if err != nil {
		return fmt.Errorf("bulk assign failed: %w", err)
	}
	app.invalidate()

	total := len(refs) + len(failures)
	fmt.Printf("%d/%d succeeded\n", result.Succeeded, total)
	for _, f := range append(failures, result.Failed...) {
		fmt.Printf("  %s: %s\n", f.Ref, f.Reason)
	}
	return nil
}

// LeadsDeleteCommand removes leads by composite id.
func LeadsDeleteCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	refsArg := fs.String("refs", "", "Comma-separated composite record ids")
	_ = fs.Parse(args)

	if *refsArg == "" {
		return fmt.Errorf("-refs is required")
	}

	wanted := make(map[string]bool)
	for _, raw := range strings.Split(*refsArg, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		ref, err := models.ParseRecordRef(raw)
		if err != nil {
			return err
		}
		wanted[ref.String()] = true
	}

	removed, err := app.Store.DeleteWhere(ctx, func(ref models.RecordRef, _ *models.Lead) bool {
		return wanted[ref.String()]
	})
	if err != nil {
		return fmt.Errorf("delete failed after removing %d: %w", removed, err)
	}
	app.invalidate()

	fmt.Printf("Removed %d of %d\n", removed, len(wanted))
	return nil
}
