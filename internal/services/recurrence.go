package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"cassa/internal/core"
)

// Recurrence expands a calendar event into concrete dates. Events without a
// rule occur once on their date; events with one follow the RRULE starting
// at their date.
type Recurrence interface {
	// Between returns the occurrences in [from, to], both inclusive.
	Between(from, to time.Time) []time.Time
}

type singleDate struct {
	at time.Time
}

func (s singleDate) Between(from, to time.Time) []time.Time {
	if s.at.Before(from) || s.at.After(to) {
		return nil
	}
	return []time.Time{s.at}
}

// maxOccurrences caps the dates one event yields per expansion. A daily
// rule over the longest allowed span stays below it.
const maxOccurrences = 400

type ruleRecurrence struct {
	rule *rrule.RRule
}

func (r ruleRecurrence) Between(from, to time.Time) []time.Time {
	var out []time.Time
	next := r.rule.Iterator()
	for at, ok := next(); ok && !at.After(to); at, ok = next() {
		if at.Before(from) {
			continue
		}
		out = append(out, at)
		if len(out) == maxOccurrences {
			break
		}
	}
	return out
}

// RecurrenceFor builds the expansion strategy of ev.
func RecurrenceFor(ev core.CalendarEvent) (Recurrence, error) {
	start := ev.Date.Time
	raw := strings.TrimSpace(ev.RRule)
	if raw == "" {
		return singleDate{at: start}, nil
	}
	raw = strings.TrimPrefix(raw, "RRULE:")

	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return nil, &core.FieldError{Field: "rrule", Err: fmt.Errorf("invalid recurrence rule: %w", err)}
	}
	// Events are date-only, so sub-daily frequencies would repeat the same day.
	if opt.Freq > rrule.DAILY {
		return nil, &core.FieldError{Field: "rrule", Err: fmt.Errorf("invalid recurrence rule: frequency %s is finer than daily", opt.Freq)}
	}
	opt.Dtstart = start
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, &core.FieldError{Field: "rrule", Err: fmt.Errorf("invalid recurrence rule: %w", err)}
	}
	return ruleRecurrence{rule: rule}, nil
}

// OccursOn reports whether rec has an occurrence on the calendar day of day.
func OccursOn(rec Recurrence, day time.Time) bool {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	end := start.Add(24*time.Hour - time.Nanosecond)
	return len(rec.Between(start, end)) > 0
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
