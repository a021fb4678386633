// Package contact parses free-text guest contact input into canonical
// email addresses and E.164 phone numbers.
package contact

import (
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/buxmate/buxmate/internal/pkg/validate"
)

// Phone is a validated phone number in canonical form.
type Phone struct {
	E164   string // +14155552671
	Region string // inferred ISO 3166-1 alpha-2 country, e.g. "US"
}

// SplitBlock splits a free-text block on commas and newlines, trims each
// entry, and drops empties.
func SplitBlock(block string) []string {
	fields := strings.FieldsFunc(block, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ParseEmails partitions the block into valid and invalid email addresses.
// Valid addresses are lowercased; duplicates collapse to the first occurrence,
// preserving first-seen order.
func ParseEmails(block string) (valid, invalid []string) {
	seen := make(map[string]struct{})
	for _, raw := range SplitBlock(block) {
		if !validate.Email(raw) {
			invalid = append(invalid, raw)
			continue
		}
		email := strings.ToLower(raw)
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		valid = append(valid, email)
	}
	return valid, invalid
}

// ParsePhones partitions the block into normalized phone numbers and invalid
// entries. defaultRegion resolves numbers written without a country prefix.
// Deduplication runs on the formatted E.164 value, so differently formatted
// inputs that resolve to the same number collapse to one entry.
func ParsePhones(block, defaultRegion string) (valid []Phone, invalid []string) {
	seen := make(map[string]struct{})
	for _, raw := range SplitBlock(block) {
		num, err := phonenumbers.Parse(raw, defaultRegion)
		if err != nil || !phonenumbers.IsValidNumber(num) {
			invalid = append(invalid, raw)
			continue
		}
		e164 := phonenumbers.Format(num, phonenumbers.E164)
		if _, ok := seen[e164]; ok {
			continue
		}
		seen[e164] = struct{}{}
		valid = append(valid, Phone{
			E164:   e164,
			Region: phonenumbers.GetRegionCodeForNumber(num),
		})
	}
	return valid, invalid
}
