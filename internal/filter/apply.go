package filter

import (
	"strings"
	"time"
)

// Dated is any record the applier can place on the calendar.
type Dated interface {
	RecordDate() string
}

var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime reads a record or descriptor date. Strings without a zone are
// read in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	var lastErr error
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t.In(loc), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// Apply returns the records whose date satisfies d, in input order.
func Apply[T Dated](d Descriptor, records []T) []T {
	return ApplyFunc(d, records, func(r T) string { return r.RecordDate() })
}

// ApplyFunc is Apply for records that do not implement Dated.
// Records whose date cannot be parsed are dropped.
func ApplyFunc[T any](d Descriptor, records []T, dateOf func(T) string) []T {
	if d.Empty() {
		return records
	}
	match := d.Matcher()
	out := make([]T, 0, len(records))
	for _, r := range records {
		if match(dateOf(r)) {
			out = append(out, r)
		}
	}
	return out
}

// Matcher compiles d into a predicate over raw date strings.
func (d Descriptor) Matcher() func(string) bool {
	if d.Empty() {
		return func(string) bool { return true }
	}
	loc := d.loc()
	var lo, hi time.Time
	if d.Range != nil {
		lo, hi = truncate(d.Type, d.Range[0].In(loc)), truncate(d.Type, d.Range[1].In(loc))
	} else {
		lo = truncate(d.Type, d.Value.In(loc))
		hi = lo
	}
	return func(raw string) bool {
		t, err := ParseTime(raw, loc)
		if err != nil {
			return false
		}
		u := truncate(d.Type, t)
		return !u.Before(lo) && !u.After(hi)
	}
}

// truncate returns the start of the unit containing t. Weeks start on
// Monday, so every day maps to the Monday of its ISO week.
func truncate(typ Type, t time.Time) time.Time {
	y, m, day := t.Date()
	loc := t.Location()
	switch typ {
	case TypeWeek:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, day-offset, 0, 0, 0, 0, loc)
	case TypeMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case TypeYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, day, 0, 0, 0, 0, loc)
	}
}

func next(typ Type, start time.Time) time.Time {
	switch typ {
	case TypeWeek:
		return start.AddDate(0, 0, 7)
	case TypeMonth:
		return start.AddDate(0, 1, 0)
	case TypeYear:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}
