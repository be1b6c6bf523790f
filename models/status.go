// ABOUTME: Status transition logic for the lead pipeline
// ABOUTME: Single place that enforces the set-once rule for status timestamps
package models

import (
	"fmt"
	"time"
)

// ApplyStatusTransition moves a lead to newStatus and stamps the matching
// status timestamp if this is the first time the lead has ever entered that
// status. Timestamps are set exactly once and never cleared or overwritten,
// even when the lead later re-enters the same status. Every mutation path
// (create, edit, bulk) must go through this function rather than setting
// Status directly.
func ApplyStatusTransition(lead Lead, newStatus string, now time.Time) (Lead, error) {
	if !ValidStatus(newStatus) {
		return lead, fmt.Errorf("unknown status %q", newStatus)
	}

	lead.Status = newStatus
	stamp := func(at **time.Time) {
		if *at == nil {
			t := now
			*at = &t
		}
	}

	switch newStatus {
	case StatusHot:
		stamp(&lead.HotAt)
	case StatusWarm:
		stamp(&lead.WarmAt)
	case StatusCold:
		stamp(&lead.ColdAt)
	case StatusCalled:
		stamp(&lead.CalledAt)
	case StatusOnboarded:
		stamp(&lead.OnboardedAt)
	case StatusDead:
		stamp(&lead.DeadAt)
	}

	t := now
	lead.UpdatedAt = &t
	return lead, nil
}

// StatusTimestamp returns the recorded first-entry timestamp for the given
// status, or nil if the lead has never entered it.
func (l *Lead) StatusTimestamp(status string) *time.Time {
	switch status {
	case StatusHot:
		return l.HotAt
	case StatusWarm:
		return l.WarmAt
	case StatusCold:
		return l.ColdAt
	case StatusCalled:
		return l.CalledAt
	case StatusOnboarded:
		return l.OnboardedAt
	case StatusDead:
		return l.DeadAt
	}
	return nil
}
