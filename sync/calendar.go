// ABOUTME: Google Calendar client for follow-up reminders
// ABOUTME: Creates and deletes events linked to lead follow-ups
package sync

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/harperreed/leadbatch/models"
)

// DefaultEventDuration is how long a follow-up block lasts on the calendar.
const DefaultEventDuration = 30 * time.Minute

// NewCalendarClient creates a Google Calendar API service from an OAuth
// token.
func NewCalendarClient(ctx context.Context, token *oauth2.Token) (*calendar.Service, error) {
	if token == nil {
		return nil, fmt.Errorf("token cannot be nil")
	}

	config := NewOAuthConfig()
	client := config.Client(ctx, token)

	service, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return service, nil
}

// FollowupEvent builds the calendar event body for one follow-up on a lead.
// The follow-up's date and time are interpreted in loc.
func FollowupEvent(lead *models.Lead, followup *models.Followup, loc *time.Location) (*calendar.Event, error) {
	if loc == nil {
		loc = time.Local
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", followup.Date+" "+followup.Time, loc)
	if err != nil {
		return nil, fmt.Errorf("followup %s has bad date/time %q %q: %w", followup.Key, followup.Date, followup.Time, err)
	}
	end := start.Add(DefaultEventDuration)

	description := followup.Remarks
	if followup.Template != "" {
		if description != "" {
			description += "\n\n"
		}
		description += "Template: " + followup.Template
	}

	return &calendar.Event{
		Summary:     fmt.Sprintf("Follow up: %s", lead.Name),
		Description: description,
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}, nil
}

// CreateFollowupEvent inserts a calendar event for the follow-up and
// returns the created event's id, which callers link back onto the
// follow-up record.
func CreateFollowupEvent(ctx context.Context, svc *calendar.Service, lead *models.Lead, followup *models.Followup, loc *time.Location) (string, error) {
	event, err := FollowupEvent(lead, followup, loc)
	if err != nil {
		return "", err
	}

	created, err := svc.Events.Insert("primary", event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create calendar event: %w", err)
	}
	return created.Id, nil
}

// DeleteFollowupEvent removes the calendar event linked to a follow-up.
// A follow-up with no linked event is a no-op.
func DeleteFollowupEvent(ctx context.Context, svc *calendar.Service, followup *models.Followup) error {
	if followup.CalendarEventID == "" {
		return nil
	}
	if err := svc.Events.Delete("primary", followup.CalendarEventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete calendar event %s: %w", followup.CalendarEventID, err)
	}
	return nil
}
