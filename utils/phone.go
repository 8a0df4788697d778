package utils

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used when a number carries no country code
const DefaultPhoneRegion = "US"

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, DefaultPhoneRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// PhoneVariants lists the spellings a stored lead phone may have for an
// inbound caller id: as received, without the +1 prefix and in E.164.
func PhoneVariants(from string) []string {
	from = strings.TrimSpace(from)
	variants := []string{from}
	if stripped := strings.TrimPrefix(from, "+1"); stripped != from {
		variants = append(variants, stripped)
	}
	if e164 := NormalizeE164(from); e164 != from {
		variants = append(variants, e164)
	}
	return variants
}
