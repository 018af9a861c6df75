// Package bus is the in-process refresh event bus. Views and streams
// subscribe to a closed set of signals; services publish after a write so
// subscribers can re-fetch what they show.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

type Signal string

const (
	DataMutated       Signal = "data-mutated"
	CategoriesChanged Signal = "categories-changed"
	CalendarChanged   Signal = "calendar-changed"
	OpenIncomeForm    Signal = "open-income-form"
	OpenExpenseForm   Signal = "open-expense-form"
	NewApprovals      Signal = "new-approvals"
)

// Signals lists every known signal in declaration order.
var Signals = []Signal{DataMutated, CategoriesChanged, CalendarChanged, OpenIncomeForm, OpenExpenseForm, NewApprovals}

func (s Signal) Valid() bool {
	for _, known := range Signals {
		if s == known {
			return true
		}
	}
	return false
}

// Event is what subscribers receive. Kind and ID name the record that
// changed when there is one.
type Event struct {
	Signal Signal    `json:"signal"`
	Kind   string    `json:"kind,omitempty"`
	ID     int64     `json:"id,omitempty"`
	At     time.Time `json:"at"`
	Origin string    `json:"origin,omitempty"`
	Remote bool      `json:"-"`
}

// Handler reacts to an event. Returned errors are logged by the bus.
type Handler func(ctx context.Context, ev Event) error

type subscription struct {
	id      uint64
	signal  Signal // empty for SubscribeAll
	handler Handler
}

type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
	origin string
	logger *slog.Logger
}

// New creates a bus. origin tags every event this process publishes.
func New(origin string, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{origin: origin, logger: logger.With("component", "bus")}
}

func (b *Bus) Origin() string { return b.origin }

// Subscribe registers h for sig. The returned func removes it and is safe
// to call more than once.
func (b *Bus) Subscribe(sig Signal, h Handler) (unsubscribe func()) {
	return b.add(sig, h)
}

// SubscribeAll registers h for every signal.
func (b *Bus) SubscribeAll(h Handler) (unsubscribe func()) {
	return b.add("", h)
}

func (b *Bus) add(sig Signal, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, signal: sig, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers ev to the current subscribers of its signal, in
// subscription order, before returning. A failing handler is logged and
// the remaining handlers still run.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if !ev.Signal.Valid() {
		return fmt.Errorf("publish: unknown signal %q", ev.Signal)
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if ev.Origin == "" {
		ev.Origin = b.origin
	}

	b.mu.RLock()
	targets := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.signal == "" || s.signal == ev.Signal {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		b.deliver(ctx, s, ev)
	}
	return nil
}

func (b *Bus) deliver(ctx context.Context, s subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorContext(ctx, "Subscriber panicked",
				"signal", ev.Signal,
				"subscription", s.id,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	if err := s.handler(ctx, ev); err != nil {
		b.logger.WarnContext(ctx, "Subscriber failed",
			"signal", ev.Signal,
			"subscription", s.id,
			"error", err)
	}
}

// Notify publishes sig with an optional record reference and logs instead
// of returning on failure. Services call it after a successful write.
func (b *Bus) Notify(ctx context.Context, sig Signal, kind string, id int64) {
	if b == nil {
		return
	}
	if err := b.Publish(ctx, Event{Signal: sig, Kind: kind, ID: id}); err != nil {
		b.logger.ErrorContext(ctx, "Failed to publish signal", "signal", sig, "error", err)
	}
}
