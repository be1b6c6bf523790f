// ABOUTME: Field-name normalization between canonical and UI-facing names
// ABOUTME: Folds legacy alias keys onto canonical keys before decoding
package models

// fieldAliases maps legacy UI-facing field names to the canonical wire
// names. Older records were written under whichever name the form used at
// the time, so readers must accept both.
var fieldAliases = map[string]string{
	"company":      "name",
	"companyName":  "name",
	"contact":      "contactPerson",
	"phoneNumber":  "phone",
	"emailAddress": "email",
	"linkedinUrl":  "linkedin",
	"websiteUrl":   "website",
}

// FoldAliases rewrites legacy alias keys in a raw decoded record onto their
// canonical names, in place, and returns the map. When both the alias and
// the canonical key are present the canonical value wins and the alias is
// dropped.
func FoldAliases(fields map[string]any) map[string]any {
	for alias, canonical := range fieldAliases {
		v, ok := fields[alias]
		if !ok {
			continue
		}
		if _, exists := fields[canonical]; !exists {
			fields[canonical] = v
		}
		delete(fields, alias)
	}
	return fields
}
