// ABOUTME: Data models for lead records stored in batch documents
// ABOUTME: Defines Lead, ContactRef, Followup structs and the status pipeline
package models

import (
	"time"
)

// Status pipeline constants.
const (
	StatusHot       = "hot"
	StatusWarm      = "warm"
	StatusCold      = "cold"
	StatusCalled    = "called"
	StatusOnboarded = "onboarded"
	StatusDead      = "dead"
)

// AllStatuses lists every pipeline status in display order.
var AllStatuses = []string{
	StatusHot,
	StatusWarm,
	StatusCold,
	StatusCalled,
	StatusOnboarded,
	StatusDead,
}

// ValidStatus reports whether s is one of the pipeline statuses.
func ValidStatus(s string) bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ContactRef is a secondary contact attached to a lead.
type ContactRef struct {
	Name        string `json:"name"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	Designation string `json:"designation,omitempty"`
}

// Followup is a scheduled follow-up attached to a lead. Key is unique
// within the lead and survives edits; CalendarEventID links the external
// calendar event created for this follow-up, if any.
type Followup struct {
	Key             string `json:"key"`
	Date            string `json:"date"` // YYYY-MM-DD
	Time            string `json:"time"` // HH:MM, 24h
	Remarks         string `json:"remarks,omitempty"`
	Template        string `json:"template,omitempty"`
	CalendarEventID string `json:"calendarEventId,omitempty"`
}

// Lead is one company lead. The JSON tags are the canonical wire names;
// legacy writers used UI-facing aliases which FoldAliases maps back onto
// these fields before decoding.
type Lead struct {
	Name          string `json:"name"`
	Industry      string `json:"industry,omitempty"`
	CompanySize   string `json:"companySize,omitempty"`
	ContactPerson string `json:"contactPerson,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	Location      string `json:"location,omitempty"`
	Designation   string `json:"designation,omitempty"`
	LinkedIn      string `json:"linkedin,omitempty"`
	Website       string `json:"website,omitempty"`
	Notes         string `json:"notes,omitempty"`
	Source        string `json:"source,omitempty"`

	Status      string     `json:"status,omitempty"`
	HotAt       *time.Time `json:"hotAt,omitempty"`
	WarmAt      *time.Time `json:"warmAt,omitempty"`
	ColdAt      *time.Time `json:"coldAt,omitempty"`
	CalledAt    *time.Time `json:"calledAt,omitempty"`
	OnboardedAt *time.Time `json:"onboardedAt,omitempty"`
	DeadAt      *time.Time `json:"deadAt,omitempty"`

	AssignedTo string     `json:"assignedTo,omitempty"`
	AssignedBy string     `json:"assignedBy,omitempty"`
	AssignedAt *time.Time `json:"assignedAt,omitempty"`

	Contacts  []ContactRef `json:"contacts,omitempty"`
	Followups []Followup   `json:"followups,omitempty"`

	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// FollowupByKey returns the follow-up with the given key, or nil.
func (l *Lead) FollowupByKey(key string) *Followup {
	for i := range l.Followups {
		if l.Followups[i].Key == key {
			return &l.Followups[i]
		}
	}
	return nil
}

// LeadSummary is the reduced shape the cache evicts full records to when
// it exceeds its capacity.
type LeadSummary struct {
	Ref        string `json:"ref"`
	Name       string `json:"name"`
	Status     string `json:"status,omitempty"`
	AssignedTo string `json:"assignedTo,omitempty"`
}

// Summary reduces a lead to its summary fields.
func (l *Lead) Summary(ref RecordRef) LeadSummary {
	return LeadSummary{
		Ref:        ref.String(),
		Name:       l.Name,
		Status:     l.Status,
		AssignedTo: l.AssignedTo,
	}
}
