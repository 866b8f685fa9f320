package normalize

// convert.go holds the scalar coercions shared by all sources: timestamp
// parsing across the export formats we have seen, numeric coercion that
// strips thousands separators, and the fixed unit-conversion factors.

import (
	"strconv"
	"strings"
	"time"
)

// PoundsToKilograms is the fixed conversion factor applied exactly once to
// pound-denominated scale columns.
const PoundsToKilograms = 0.453592

// Layouts carrying their own zone offset.
var zonedLayouts = []string{
	"2006-01-02 15:04:05 -0700", // Apple Health export timestamps
	time.RFC3339,
}

// Zone-less layouts, interpreted in the configured fallback location.
var localLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006 3:04:05 PM",
	"01/02/2006 3:04 PM",
	"01/02/2006",
	"1/2/2006 15:04",
	"1/2/2006 3:04 PM",
	"1/2/2006",
}

// ParseTime parses a timestamp string into a zone-aware instant. Layouts
// without an offset are interpreted in loc. The second return is false when
// no known layout matches; callers must treat that as an explicit
// "unparsable" outcome, never as the zero time.
func ParseTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDate parses a calendar date (MM/DD/YYYY or YYYY-MM-DD, with or
// without a time-of-day suffix) and truncates it to midnight UTC.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	t, ok := ParseTime(s, loc)
	if !ok {
		return time.Time{}, false
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
}

// CombineDateTime joins separate date and time cells into one instant.
// An empty time cell degrades to the date alone.
func CombineDateTime(date, clock string, loc *time.Location) (time.Time, bool) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if clock == "" {
		return ParseTime(date, loc)
	}
	return ParseTime(date+" "+clock, loc)
}

// ParseFloat coerces a numeric cell, stripping thousands separators first.
// Returns nil for empty or non-numeric input instead of an error, so a bad
// optional column degrades to NULL rather than aborting the row.
func ParseFloat(s string) *float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// lbToKg converts pounds to kilograms at the fixed factor.
func lbToKg(v float64) float64 { return v * PoundsToKilograms }
