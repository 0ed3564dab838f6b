package domain

import (
	"regexp"
	"strings"
)

var shortIDPattern = regexp.MustCompile(`^[A-Z]{3,6}[0-9]{2,4}$`)

// ValidateShortID checks that a non-empty ShortID matches the required
// format: 3-6 uppercase letters followed by 2-4 digits (e.g. RES01, CASA0234).
// Short IDs are optional; an empty value is accepted.
func ValidateShortID(shortID string) error {
	if shortID == "" {
		return nil
	}
	if !shortIDPattern.MatchString(shortID) {
		return NewValidationError("short_id", "%q must be 3-6 uppercase letters followed by 2-4 digits (e.g. RES01)", shortID)
	}
	return nil
}

// ValidateLabel rejects empty or whitespace-only labels.
func ValidateLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return NewValidationError("label", "must not be empty")
	}
	return nil
}
