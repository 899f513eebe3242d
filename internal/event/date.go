package event

import (
	"strings"
	"time"
)

// dateLayouts are tried in order when parsing an event's stored date.
// The first entry is what the create form and the seed schema produce.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// DateLayout is the canonical stored date format.
const DateLayout = "2006-01-02"

// ParseDate parses a stored calendar date. ok is false for blank or
// malformed input.
func ParseDate(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
