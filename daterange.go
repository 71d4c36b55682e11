package fitbridge

import (
	"errors"
	"strings"
	"time"
)

const (
	dateKeyLayout = "2006-01-02"
	isoLayout     = "2006-01-02T15:04:05.000Z"
)

// Layouts without an offset are read in the caller's location, except the
// bare date which is UTC midnight.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// Range is a resolved [Start, End) query window.
type Range struct {
	Start time.Time
	End   time.Time
}

// ResolveRange applies the query defaults: a missing start is the beginning
// of the current local day, a missing end is now. Unparseable dates are an
// *InvalidDateError, never a silent default.
func ResolveRange(opts QueryOptions, now time.Time, loc *time.Location) (Range, error) {
	if loc == nil {
		loc = time.Local
	}
	var r Range
	if strings.TrimSpace(opts.StartDate) == "" {
		local := now.In(loc)
		r.Start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	} else {
		start, err := ParseInstant("startDate", opts.StartDate, loc)
		if err != nil {
			return Range{}, err
		}
		r.Start = start
	}
	if strings.TrimSpace(opts.EndDate) == "" {
		r.End = now
	} else {
		end, err := ParseInstant("endDate", opts.EndDate, loc)
		if err != nil {
			return Range{}, err
		}
		r.End = end
	}
	return r, nil
}

// ParseInstant parses a date-like string into an absolute instant.
func ParseInstant(field, value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, &InvalidDateError{Field: field, Value: value, Err: errors.New("empty date")}
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(dateKeyLayout, v); err == nil {
		return t, nil
	}
	var lastErr error
	for _, layout := range localLayouts {
		t, err := time.ParseInLocation(layout, v, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, &InvalidDateError{Field: field, Value: value, Err: lastErr}
}

// DateKey formats the calendar day of t in loc as YYYY-MM-DD.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(dateKeyLayout)
}

// ISOTimestamp renders t in UTC with millisecond precision.
func ISOTimestamp(t time.Time) string {
	return t.UTC().Format(isoLayout)
}
