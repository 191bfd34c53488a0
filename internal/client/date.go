package client

import (
	"fmt"
	"time"
)

// Date layouts accepted in the store. The store is manually edited, so
// both ISO and day-first forms show up.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
}

// ParseDate parses a subscription date from the store.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date: %q", s)
}

// Midnight truncates a time to midnight local time.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// FormatDate formats a time the way dates are written back to the store.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// FormatHumanDate formats a date for email and form bodies.
func FormatHumanDate(s string) string {
	t, err := ParseDate(s)
	if err != nil {
		return s
	}
	return t.Format("January 2, 2006")
}
