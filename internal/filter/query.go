package filter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// FromQuery reads a descriptor from query parameters:
//
//	filterType=month&value=2024-03-01
//	filterType=date&compareMode=true&start=2024-01-10&end=2024-01-15
//
// present is false when the query carries no filterType.
func FromQuery(q url.Values, loc *time.Location) (d Descriptor, present bool, err error) {
	typ := strings.TrimSpace(q.Get("filterType"))
	if typ == "" {
		return Descriptor{}, false, nil
	}
	d = Descriptor{Type: Type(typ), Location: loc}

	if v := strings.TrimSpace(q.Get("compareMode")); v != "" {
		d.Compare, err = strconv.ParseBool(v)
		if err != nil {
			return Descriptor{}, true, fmt.Errorf("%w: compareMode %q", ErrInvalidValue, v)
		}
	}

	if d.Compare {
		start, end := strings.TrimSpace(q.Get("start")), strings.TrimSpace(q.Get("end"))
		if start != "" || end != "" {
			s, err := ParseTime(start, d.loc())
			if err != nil {
				return Descriptor{}, true, fmt.Errorf("%w: start %q", ErrInvalidValue, start)
			}
			e, err := ParseTime(end, d.loc())
			if err != nil {
				return Descriptor{}, true, fmt.Errorf("%w: end %q", ErrInvalidValue, end)
			}
			d.Range = &[2]time.Time{s, e}
		}
	} else if v := strings.TrimSpace(q.Get("value")); v != "" {
		t, err := ParseTime(v, d.loc())
		if err != nil {
			return Descriptor{}, true, fmt.Errorf("%w: value %q", ErrInvalidValue, v)
		}
		d.Value = &t
	}

	if err := d.Validate(); err != nil {
		return Descriptor{}, true, err
	}
	return d, true, nil
}

// Default is the descriptor a new session starts with. It carries no value,
// so nothing is filtered until the user picks a period.
func Default() Descriptor {
	return Descriptor{Type: TypeMonth}
}
