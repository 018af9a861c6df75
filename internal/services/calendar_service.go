package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"cassa/internal/auth"
	"cassa/internal/bus"
	"cassa/internal/core"
	"cassa/internal/filter"
	"cassa/internal/storage"
)

// maxOccurrenceSpan bounds how far a single expansion request may reach.
const maxOccurrenceSpan = 366 * 24 * time.Hour

// Occurrence is one concrete date of a calendar event.
type Occurrence struct {
	Event core.CalendarEvent
	Date  core.Date
}

type CalendarService struct {
	storage *storage.SQLiteRepository
	bus     *bus.Bus
}

func NewCalendarService(storage *storage.SQLiteRepository, b *bus.Bus) *CalendarService {
	return &CalendarService{storage: storage, bus: b}
}

func (s *CalendarService) CreateEvent(ctx context.Context, actor auth.Identity, ev core.CalendarEvent) (core.CalendarEvent, error) {
	if !actor.Role.IsAdmin() || ev.UserID == 0 {
		ev.UserID = actor.ID
	}
	if err := prepareEvent(&ev); err != nil {
		return core.CalendarEvent{}, err
	}
	created, err := s.storage.CreateEvent(ctx, ev)
	if err != nil {
		return core.CalendarEvent{}, err
	}
	s.bus.Notify(ctx, bus.CalendarChanged, KindEvent, created.ID)
	return created, nil
}

func (s *CalendarService) UpdateEvent(ctx context.Context, actor auth.Identity, ev core.CalendarEvent) (core.CalendarEvent, error) {
	current, err := s.owned(ctx, actor, ev.ID)
	if err != nil {
		return core.CalendarEvent{}, err
	}
	ev.UserID = current.UserID
	if err := prepareEvent(&ev); err != nil {
		return core.CalendarEvent{}, err
	}
	updated, err := s.storage.UpdateEvent(ctx, ev)
	if err != nil {
		return core.CalendarEvent{}, err
	}
	s.bus.Notify(ctx, bus.CalendarChanged, KindEvent, updated.ID)
	return updated, nil
}

func (s *CalendarService) DeleteEvent(ctx context.Context, actor auth.Identity, id int64) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.storage.DeleteEvent(ctx, id); err != nil {
		return err
	}
	s.bus.Notify(ctx, bus.CalendarChanged, KindEvent, id)
	return nil
}

func (s *CalendarService) owned(ctx context.Context, actor auth.Identity, id int64) (core.CalendarEvent, error) {
	ev, err := s.storage.GetEvent(ctx, id)
	if err != nil {
		return core.CalendarEvent{}, err
	}
	if ev.UserID != actor.ID && !actor.Role.IsAdmin() {
		return core.CalendarEvent{}, core.ErrForbidden
	}
	return ev, nil
}

func prepareEvent(ev *core.CalendarEvent) error {
	ev.Title = strings.TrimSpace(ev.Title)
	ev.RRule = strings.TrimSpace(ev.RRule)
	if err := ev.Validate(); err != nil {
		return err
	}
	_, err := RecurrenceFor(*ev)
	return err
}

// ListEvents returns the actor's events whose start date matches d.
// Admins see every user's events.
func (s *CalendarService) ListEvents(ctx context.Context, actor auth.Identity, d filter.Descriptor) ([]core.CalendarEvent, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	events, err := s.storage.ListEvents(ctx, scopeOf(actor), false)
	if err != nil {
		return nil, err
	}
	return filter.Apply(d, events), nil
}

// Occurrences expands the actor's events into dates within [from, to],
// sorted by date.
func (s *CalendarService) Occurrences(ctx context.Context, actor auth.Identity, from, to core.Date) ([]Occurrence, error) {
	if from.IsZero() || to.IsZero() {
		return nil, &core.FieldError{Field: "from", Err: core.ErrInvalidDate}
	}
	if to.Before(from.Time) {
		return nil, &core.FieldError{Field: "to", Err: fmt.Errorf("to is before from: %w", core.ErrInvalidDate)}
	}
	if to.Sub(from.Time) > maxOccurrenceSpan {
		return nil, &core.FieldError{Field: "to", Err: fmt.Errorf("span exceeds one year: %w", core.ErrInvalidDate)}
	}

	events, err := s.storage.ListEvents(ctx, scopeOf(actor), false)
	if err != nil {
		return nil, err
	}
	end := to.Add(24*time.Hour - time.Nanosecond)

	var out []Occurrence
	for _, ev := range events {
		rec, err := RecurrenceFor(ev)
		if err != nil {
			continue
		}
		for _, at := range rec.Between(from.Time, end) {
			y, m, d := at.Date()
			out = append(out, Occurrence{Event: ev, Date: core.NewDate(y, int(m), d)})
		}
	}
	slices.SortStableFunc(out, func(a, b Occurrence) int {
		return a.Date.Compare(b.Date.Time)
	})
	return out, nil
}

func scopeOf(actor auth.Identity) int64 {
	if actor.Role.IsAdmin() {
		return 0
	}
	return actor.ID
}
