package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"cassa/internal/bus"
	"cassa/internal/core"
	"cassa/internal/filter"
)

func TestCalendarService_Occurrences(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := NewCalendarService(e.repo, e.bus)

	rent, err := svc.CreateEvent(ctx, e.user, core.CalendarEvent{Title: "Affitto", Date: date("2024-01-05"), RRule: "FREQ=MONTHLY;BYMONTHDAY=5"})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if _, err := svc.CreateEvent(ctx, e.user, core.CalendarEvent{Title: "Bollo auto", Date: date("2024-03-05")}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateEvent(ctx, e.other, core.CalendarEvent{Title: "Dentista", Date: date("2024-02-10")}); err != nil {
		t.Fatal(err)
	}
	evs := e.events.take()
	if len(evs) != 3 || evs[0].Signal != bus.CalendarChanged || evs[0].ID != rent.ID {
		t.Errorf("events = %+v", evs)
	}

	got, err := svc.Occurrences(ctx, e.user, date("2024-01-01"), date("2024-03-31"))
	if err != nil {
		t.Fatalf("Occurrences: %v", err)
	}
	want := []string{"2024-01-05", "2024-02-05", "2024-03-05", "2024-03-05"}
	if len(got) != len(want) {
		t.Fatalf("occurrences = %+v", got)
	}
	for i, w := range want {
		if got[i].Date.String() != w {
			t.Errorf("occurrence %d = %s, want %s", i, got[i].Date, w)
		}
	}
	if got[2].Event.ID != rent.ID {
		t.Errorf("same-day order not stable: %+v", got[2].Event)
	}

	admin, err := svc.Occurrences(ctx, e.admin, date("2024-02-01"), date("2024-02-29"))
	if err != nil || len(admin) != 2 {
		t.Errorf("admin occurrences = %+v, %v", admin, err)
	}

	if _, err := svc.Occurrences(ctx, e.user, date("2024-03-01"), date("2024-01-01")); err == nil {
		t.Error("reversed span accepted")
	}
	if _, err := svc.Occurrences(ctx, e.user, date("2024-01-01"), date("2026-01-01")); err == nil {
		t.Error("span over a year accepted")
	}

	listed, err := svc.ListEvents(ctx, e.user, filter.Single(filter.TypeMonth, day("2024-03-01")))
	if err != nil || len(listed) != 1 || listed[0].Title != "Bollo auto" {
		t.Errorf("ListEvents = %+v, %v", listed, err)
	}
}

func TestCalendarService_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := NewCalendarService(e.repo, e.bus)

	var fe *core.FieldError
	_, err := svc.CreateEvent(ctx, e.user, core.CalendarEvent{Title: "Bad", Date: date("2024-01-01"), RRule: "FREQ=SOMETIMES"})
	if !errors.As(err, &fe) || fe.Field != "rrule" {
		t.Errorf("bad rrule err = %v", err)
	}
	_, err = svc.CreateEvent(ctx, e.user, core.CalendarEvent{Date: date("2024-01-01")})
	if !errors.As(err, &fe) || fe.Field != "title" {
		t.Errorf("missing title err = %v", err)
	}

	ev, err := svc.CreateEvent(ctx, e.user, core.CalendarEvent{Title: "Palestra", Date: date("2024-01-01"), RRule: "RRULE:FREQ=WEEKLY"})
	if err != nil {
		t.Fatal(err)
	}
	ev.Title = "Piscina"
	if _, err := svc.UpdateEvent(ctx, e.other, ev); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("foreign update err = %v", err)
	}
	if _, err := svc.UpdateEvent(ctx, e.admin, ev); err != nil {
		t.Errorf("admin update: %v", err)
	}
	if err := svc.DeleteEvent(ctx, e.user, ev.ID); err != nil {
		t.Errorf("owner delete: %v", err)
	}
}

func TestReminderProcessor(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	cal := NewCalendarService(e.repo, e.bus)
	proc := NewReminderProcessor(e.repo, e.bus)

	for _, ev := range []core.CalendarEvent{
		{Title: "Affitto", Date: date("2024-01-05"), RRule: "FREQ=MONTHLY;BYMONTHDAY=5", Remind: true},
		{Title: "Bollo auto", Date: date("2024-03-05"), Remind: true},
		{Title: "Silenzioso", Date: date("2024-03-05")},
	} {
		if _, err := cal.CreateEvent(ctx, e.user, ev); err != nil {
			t.Fatal(err)
		}
	}
	e.events.take()

	at := func(s string) time.Time { return day(s).Add(9 * time.Hour) }
	tests := []struct {
		now  string
		want int
	}{
		{"2024-03-05", 2},
		{"2024-03-05", 0},
		{"2024-03-06", 0},
		{"2024-04-05", 1},
	}
	for _, tt := range tests {
		n, err := proc.ProcessReminders(ctx, at(tt.now))
		if err != nil {
			t.Fatalf("ProcessReminders(%s): %v", tt.now, err)
		}
		if n != tt.want {
			t.Errorf("ProcessReminders(%s) = %d, want %d", tt.now, n, tt.want)
		}
	}
	if evs := e.events.take(); len(evs) != 3 {
		t.Errorf("published %d events, want 3", len(evs))
	}
}

func TestRecurrenceFor_Single(t *testing.T) {
	rec, err := RecurrenceFor(core.CalendarEvent{Date: date("2024-02-29")})
	if err != nil {
		t.Fatal(err)
	}
	if !OccursOn(rec, day("2024-02-29").Add(23*time.Hour)) {
		t.Error("event should occur on its date")
	}
	if OccursOn(rec, day("2024-03-01")) {
		t.Error("single event occurred on the next day")
	}
}

func TestRecurrenceFor_RejectsSubDaily(t *testing.T) {
	for _, rule := range []string{"FREQ=HOURLY", "FREQ=MINUTELY", "RRULE:FREQ=SECONDLY;COUNT=5"} {
		t.Run(rule, func(t *testing.T) {
			var fe *core.FieldError
			_, err := RecurrenceFor(core.CalendarEvent{Date: date("2024-01-01"), RRule: rule})
			if !errors.As(err, &fe) || fe.Field != "rrule" {
				t.Errorf("err = %v, want rrule field error", err)
			}
		})
	}

	e := newEnv(t)
	svc := NewCalendarService(e.repo, e.bus)
	if _, err := svc.CreateEvent(context.Background(), e.user, core.CalendarEvent{Title: "Spam", Date: date("2024-01-01"), RRule: "FREQ=MINUTELY"}); err == nil {
		t.Error("minutely event accepted")
	}
}

func TestRecurrenceFor_Cap(t *testing.T) {
	rec, err := RecurrenceFor(core.CalendarEvent{Date: date("2020-01-01"), RRule: "FREQ=DAILY"})
	if err != nil {
		t.Fatal(err)
	}
	if got := rec.Between(day("2020-01-01"), day("2024-01-01")); len(got) != maxOccurrences {
		t.Errorf("len = %d, want %d", len(got), maxOccurrences)
	}

	year := rec.Between(day("2021-01-01"), day("2022-01-01"))
	if len(year) != 366 {
		t.Fatalf("len = %d, want 366", len(year))
	}
	if !sameDay(year[0], day("2021-01-01")) || !sameDay(year[365], day("2022-01-01")) {
		t.Errorf("bounds = %s..%s", year[0], year[365])
	}
}

func TestCalendarService_OwnEventsOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := NewCalendarService(e.repo, e.bus)

	mine, err := svc.CreateEvent(ctx, e.admin, core.CalendarEvent{Title: "Revisione", Date: date("2024-05-02")})
	if err != nil {
		t.Fatal(err)
	}
	if mine.UserID != e.admin.ID {
		t.Errorf("UserID = %d, want the admin %d", mine.UserID, e.admin.ID)
	}
	if _, err := svc.CreateEvent(ctx, e.admin, core.CalendarEvent{UserID: e.user.ID, Title: "Ferie", Date: date("2024-05-03")}); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Occurrences(ctx, e.other, date("2024-05-01"), date("2024-05-31"))
	if err != nil || len(got) != 0 {
		t.Errorf("other user sees %+v, %v", got, err)
	}
	got, err = svc.Occurrences(ctx, e.user, date("2024-05-01"), date("2024-05-31"))
	if err != nil || len(got) != 1 || got[0].Event.Title != "Ferie" {
		t.Errorf("user occurrences = %+v, %v", got, err)
	}
}
