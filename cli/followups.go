// ABOUTME: Follow-up scheduling CLI commands
// ABOUTME: Adds follow-ups to leads with optional calendar event linking
package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/leadbatch/models"
	"github.com/harperreed/leadbatch/sync"
)

// FollowupAddCommand schedules a follow-up on a lead. With -calendar, a
// Google Calendar event is created and its id linked onto the follow-up.
func FollowupAddCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	refArg := fs.String("ref", "", "Composite record id (batchId_position)")
	date := fs.String("date", "", "Follow-up date (YYYY-MM-DD)")
	timeArg := fs.String("time", "", "Follow-up time (HH:MM, 24h)")
	remarks := fs.String("remarks", "", "Notes for the follow-up")
	template := fs.String("template", "", "Message template to use")
	withCalendar := fs.Bool("calendar", false, "Create a linked Google Calendar event")
	_ = fs.Parse(args)

	ref, err := models.ParseRecordRef(*refArg)
	if err != nil {
		return err
	}
	if *date == "" || *timeArg == "" {
		return fmt.Errorf("-date and -time are required")
	}

	followup := models.Followup{
		Key:      uuid.New().String(),
		Date:     *date,
		Time:     *timeArg,
		Remarks:  *remarks,
		Template: *template,
	}

	if *withCalendar {
		token, err := sync.LoadToken()
		if err != nil {
			return fmt.Errorf("calendar not connected (run 'leadbatch auth' first): %w", err)
		}
		svc, err := sync.NewCalendarClient(ctx, token)
		if err != nil {
			return err
		}

		// Create the event first so its id is stored with the follow-up.
		_, entries, err := app.Store.FetchBatch(ctx, ref.BatchID)
		if err != nil {
			return fmt.Errorf("failed to read lead %s: %w", ref, err)
		}
		if ref.Position < 0 || ref.Position >= len(entries) {
			return fmt.Errorf("record %s: position out of range", ref)
		}
		entry := entries[ref.Position]
		if entry.Err != nil {
			return fmt.Errorf("record %s: %w", ref, entry.Err)
		}

		eventID, err := sync.CreateFollowupEvent(ctx, svc, entry.Lead, &followup, time.Local)
		if err != nil {
			return err
		}
		followup.CalendarEventID = eventID
	}

	now := time.Now().UTC()
	newRef, err := app.Store.UpdateRecord(ctx, ref, func(lead *models.Lead) error {
		lead.Followups = append(lead.Followups, followup)
		lead.UpdatedAt = &now
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add followup: %w", err)
	}
	app.invalidate()

	fmt.Printf("Scheduled follow-up %s on %s at %s %s\n", followup.Key, newRef, followup.Date, followup.Time)
	if followup.CalendarEventID != "" {
		fmt.Printf("Linked calendar event %s\n", followup.CalendarEventID)
	}
	return nil
}
