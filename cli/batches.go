// ABOUTME: Batch administration CLI commands
// ABOUTME: Lists batch documents and runs the proactive rebalancer
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/harperreed/leadbatch/batch"
	"github.com/harperreed/leadbatch/docstore"
	"github.com/harperreed/leadbatch/store"
)

// BatchesListCommand shows every batch document and its record count.
func BatchesListCommand(ctx context.Context, app *App, args []string) error {
	docs, err := app.DS.Query(ctx, store.DefaultCollection, docstore.Query{
		OrderByID:  true,
		Descending: true,
	})
	if err != nil {
		return fmt.Errorf("failed to list batches: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "BATCH\tRECORDS\tSPLIT FROM\tUPLOADED")
	_, _ = fmt.Fprintln(w, "-----\t-------\t----------\t--------")

	total := 0
	over := 0
	for _, d := range docs {
		doc, err := batch.FromFields(d.Fields)
		if err != nil {
			_, _ = fmt.Fprintf(w, "%s\t(malformed: %v)\t\t\n", d.ID, err)
			continue
		}
		marker := ""
		if len(doc.Entries) > batch.HardCeiling {
			marker = " !"
			over++
		}
		total += len(doc.Entries)
		_, _ = fmt.Fprintf(w, "%s\t%d%s\t%s\t%s\n", d.ID, len(doc.Entries), marker, doc.SplitFrom, doc.UploadedAt)
	}
	_ = w.Flush()

	fmt.Printf("\n%d records in %d batches", total, len(docs))
	if over > 0 {
		fmt.Printf(" (%d over the ceiling; run 'batches rebalance')", over)
	}
	fmt.Println()
	return nil
}

// BatchesRebalanceCommand splits every batch over the hard ceiling.
func BatchesRebalanceCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("rebalance", flag.ExitOnError)
	_ = fs.Parse(args)

	split, err := app.Store.Rebalance(ctx)
	if err != nil {
		return fmt.Errorf("rebalance failed: %w", err)
	}
	if split > 0 {
		app.invalidate()
	}
	fmt.Printf("Split %d oversized batches\n", split)
	return nil
}
