package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cassa/internal/bus"
	"cassa/internal/storage"
)

// ReminderProcessor fires calendar reminders for events that occur on the
// processing day.
type ReminderProcessor struct {
	storage *storage.SQLiteRepository
	bus     *bus.Bus
}

func NewReminderProcessor(storage *storage.SQLiteRepository, b *bus.Bus) *ReminderProcessor {
	return &ReminderProcessor{storage: storage, bus: b}
}

// ProcessReminders logs a reminder for every remind-enabled event with an
// occurrence on now's day that was not reminded yet that day, and stamps it.
func (p *ReminderProcessor) ProcessReminders(ctx context.Context, now time.Time) (int, error) {
	if p.storage == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	events, err := p.storage.ListEvents(ctx, 0, true)
	if err != nil {
		return 0, fmt.Errorf("failed to get remind-enabled events: %w", err)
	}

	slog.InfoContext(ctx, "Processing calendar reminders",
		"total_active", len(events),
		"processing_date", now.Format(time.DateOnly))

	processed := 0
	for _, ev := range events {
		if !ev.LastRemindedAt.IsZero() && sameDay(ev.LastRemindedAt.In(now.Location()), now) {
			continue
		}

		rec, err := RecurrenceFor(ev)
		if err != nil {
			slog.ErrorContext(ctx, "Skipping event with invalid recurrence",
				"id", ev.ID,
				"rrule", ev.RRule,
				"error", err)
			continue
		}
		if !OccursOn(rec, now) {
			continue
		}

		if err := p.storage.MarkReminded(ctx, ev.ID, now); err != nil {
			slog.ErrorContext(ctx, "Failed to stamp reminder",
				"id", ev.ID,
				"error", err)
			continue
		}

		processed++
		slog.InfoContext(ctx, "Calendar reminder",
			"id", ev.ID,
			"user_id", ev.UserID,
			"title", ev.Title,
			"date", now.Format(time.DateOnly))
		p.bus.Notify(ctx, bus.CalendarChanged, KindEvent, ev.ID)
	}

	slog.InfoContext(ctx, "Calendar reminder processing complete",
		"processed", processed,
		"total_checked", len(events))
	return processed, nil
}

// Run processes reminders every interval until ctx is done. The first run
// happens immediately.
func (p *ReminderProcessor) Run(ctx context.Context, interval time.Duration, now func() time.Time) error {
	if now == nil {
		now = time.Now
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.ProcessReminders(ctx, now()); err != nil {
			slog.ErrorContext(ctx, "Reminder run failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
