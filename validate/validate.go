// ABOUTME: Pre-write validation for lead records
// ABOUTME: Field format checks and advisory duplicate detection
package validate

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/harperreed/leadbatch/models"
)

var (
	phonePattern    = regexp.MustCompile(`^\+?[0-9][0-9 \-()]{5,19}$`)
	urlPattern      = regexp.MustCompile(`^https?://[^\s]+\.[^\s]+$`)
	linkedinPattern = regexp.MustCompile(`^https?://(www\.)?linkedin\.com/[^\s]+$`)
)

// Lead checks a record before any store write is attempted. The first
// problem found is returned; nil means the record is storable.
func Lead(lead *models.Lead) error {
	if strings.TrimSpace(lead.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if lead.Status != "" && !models.ValidStatus(lead.Status) {
		return fmt.Errorf("unknown status %q", lead.Status)
	}
	if lead.Email != "" {
		if _, err := mail.ParseAddress(lead.Email); err != nil {
			return fmt.Errorf("malformed email %q", lead.Email)
		}
	}
	if lead.Phone != "" && !phonePattern.MatchString(lead.Phone) {
		return fmt.Errorf("malformed phone %q", lead.Phone)
	}
	if lead.Website != "" && !urlPattern.MatchString(lead.Website) {
		return fmt.Errorf("malformed website URL %q", lead.Website)
	}
	if lead.LinkedIn != "" && !linkedinPattern.MatchString(lead.LinkedIn) {
		return fmt.Errorf("malformed LinkedIn URL %q", lead.LinkedIn)
	}
	for i, f := range lead.Followups {
		if f.Key == "" {
			return fmt.Errorf("followup %d is missing its key", i)
		}
	}
	return nil
}

// FindDuplicate reports an existing record that matches the candidate by
// email or phone. Detection is advisory: the caller may surface the match
// and proceed anyway.
func FindDuplicate(candidate *models.Lead, existing []models.Lead, refs []models.RecordRef) *models.RecordRef {
	email := strings.ToLower(strings.TrimSpace(candidate.Email))
	phone := normalizePhone(candidate.Phone)

	for i := range existing {
		if email != "" && strings.ToLower(strings.TrimSpace(existing[i].Email)) == email {
			return &refs[i]
		}
		if phone != "" && normalizePhone(existing[i].Phone) == phone {
			return &refs[i]
		}
	}
	return nil
}

// normalizePhone strips formatting so 98765-43210 and 9876543210 compare
// equal.
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
