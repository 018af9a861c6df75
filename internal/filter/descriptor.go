// Package filter holds the dashboard date filter: the descriptor a session
// keeps, and the pure applier every list view runs its records through.
package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// StorageKey is the session key the descriptor is stored under.
const StorageKey = "dashboard.dateFilter"

type Type string

const (
	TypeDate  Type = "date"
	TypeWeek  Type = "week"
	TypeMonth Type = "month"
	TypeYear  Type = "year"
)

var (
	ErrInvalidType  = errors.New("invalid filter type")
	ErrInvalidValue = errors.New("invalid filter value")
	ErrShape        = errors.New("filter value does not match compare mode")
	ErrReversed     = errors.New("filter range start is after end")
)

func (t Type) Valid() bool {
	switch t {
	case TypeDate, TypeWeek, TypeMonth, TypeYear:
		return true
	}
	return false
}

// Descriptor selects records by date. With Compare unset, Value picks one
// calendar unit; with Compare set, Range is a closed interval of units.
// A descriptor with neither Value nor Range passes everything.
type Descriptor struct {
	Type    Type
	Compare bool
	Value   *time.Time
	Range   *[2]time.Time

	// Location used to read naive timestamps and cut units. Nil means UTC.
	Location *time.Location
}

// Single builds a non-compare descriptor.
func Single(t Type, v time.Time) Descriptor {
	return Descriptor{Type: t, Value: &v}
}

// Between builds a compare-mode descriptor.
func Between(t Type, start, end time.Time) Descriptor {
	return Descriptor{Type: t, Compare: true, Range: &[2]time.Time{start, end}}
}

// Empty reports whether the descriptor carries no value.
func (d Descriptor) Empty() bool {
	return d.Value == nil && d.Range == nil
}

func (d Descriptor) loc() *time.Location {
	if d.Location == nil {
		return time.UTC
	}
	return d.Location
}

func (d Descriptor) Validate() error {
	if !d.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, d.Type)
	}
	if d.Compare && d.Value != nil {
		return ErrShape
	}
	if !d.Compare && d.Range != nil {
		return ErrShape
	}
	if d.Range != nil {
		loc := d.loc()
		if truncate(d.Type, d.Range[0].In(loc)).After(truncate(d.Type, d.Range[1].In(loc))) {
			return ErrReversed
		}
	}
	return nil
}

// Bounds returns the half-open span [from, to) covered by the descriptor,
// at unit granularity. ok is false for an empty descriptor.
func (d Descriptor) Bounds() (from, to time.Time, ok bool) {
	loc := d.loc()
	switch {
	case d.Range != nil:
		return truncate(d.Type, d.Range[0].In(loc)), next(d.Type, truncate(d.Type, d.Range[1].In(loc))), true
	case d.Value != nil:
		start := truncate(d.Type, d.Value.In(loc))
		return start, next(d.Type, start), true
	}
	return time.Time{}, time.Time{}, false
}

type wireDescriptor struct {
	FilterType  Type            `json:"filterType"`
	CompareMode bool            `json:"compareMode"`
	Value       json.RawMessage `json:"value"`
}

func (d Descriptor) MarshalJSON() ([]byte, error) {
	w := wireDescriptor{FilterType: d.Type, CompareMode: d.Compare, Value: json.RawMessage("null")}
	var (
		raw []byte
		err error
	)
	switch {
	case d.Range != nil:
		raw, err = json.Marshal([2]string{formatValue(d.Range[0]), formatValue(d.Range[1])})
	case d.Value != nil:
		raw, err = json.Marshal(formatValue(*d.Value))
	}
	if err != nil {
		return nil, err
	}
	if raw != nil {
		w.Value = raw
	}
	return json.Marshal(w)
}

func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var w wireDescriptor
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := Descriptor{Type: w.FilterType, Compare: w.CompareMode, Location: d.Location}

	raw := bytes.TrimSpace(w.Value)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '[':
		var pair []string
		if err := json.Unmarshal(raw, &pair); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		if len(pair) != 2 {
			return fmt.Errorf("%w: range needs 2 elements, got %d", ErrInvalidValue, len(pair))
		}
		start, err := ParseTime(pair[0], out.loc())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		end, err := ParseTime(pair[1], out.loc())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		out.Range = &[2]time.Time{start, end}
	default:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		v, err := ParseTime(s, out.loc())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		out.Value = &v
	}

	if err := out.Validate(); err != nil {
		return err
	}
	*d = out
	return nil
}

func formatValue(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}
