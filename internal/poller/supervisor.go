// Package poller watches the pending-approvals count on a fixed interval
// and raises an alert when it grows.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cassa/internal/bus"
)

// DefaultInterval is the polling period used when none is configured.
const DefaultInterval = 20 * time.Second

type State int

const (
	Idle State = iota
	Polling
)

func (s State) String() string {
	if s == Polling {
		return "polling"
	}
	return "idle"
}

// Counter fetches the current pending count for the identity being watched.
type Counter interface {
	PendingCount(ctx context.Context) (int64, error)
}

// CounterFunc adapts a function to Counter.
type CounterFunc func(ctx context.Context) (int64, error)

func (f CounterFunc) PendingCount(ctx context.Context) (int64, error) { return f(ctx) }

// Alert describes a growth of the pending count.
type Alert struct {
	User     string
	Previous int64
	Current  int64
	Delta    int64
	At       time.Time
}

// Notifier surfaces an alert to the user, visibly and audibly.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// Publisher is the part of the bus the supervisor needs.
type Publisher interface {
	Publish(ctx context.Context, ev bus.Event) error
}

var ErrNoIdentity = errors.New("poller: no user identity")

type Config struct {
	Interval time.Duration
	Logger   *slog.Logger
}

type Supervisor struct {
	counter   Counter
	notifier  Notifier
	publisher Publisher
	interval  time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	state    State
	user     string
	previous int64
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(counter Counter, notifier Notifier, publisher Publisher, cfg Config) *Supervisor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Supervisor{
		counter:   counter,
		notifier:  notifier,
		publisher: publisher,
		interval:  cfg.Interval,
		logger:    cfg.Logger.With("component", "poller"),
	}
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Previous returns the last successfully fetched count.
func (s *Supervisor) Previous() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previous
}

// Start enters Polling for user. The first tick runs immediately; later
// ticks follow the interval. Starting while already polling is a no-op.
func (s *Supervisor) Start(ctx context.Context, user string) error {
	if user == "" {
		return ErrNoIdentity
	}
	s.mu.Lock()
	if s.state == Polling {
		s.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.state = Polling
	s.user = user
	s.previous = 0
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Approval polling started", "user", user, "interval", s.interval)
	go s.run(ctx, done)
	return nil
}

// Stop returns to Idle and waits for the polling goroutine to exit.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.state == Idle {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// SetIdentity switches the watched user. An empty user stops polling.
func (s *Supervisor) SetIdentity(ctx context.Context, user string) error {
	s.mu.Lock()
	current := s.user
	polling := s.state == Polling
	s.mu.Unlock()

	if user == "" {
		s.Stop()
		return nil
	}
	if polling && current == user {
		return nil
	}
	s.Stop()
	return s.Start(ctx, user)
}

func (s *Supervisor) run(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		s.mu.Lock()
		s.state = Idle
		s.user = ""
		s.cancel = nil
		s.mu.Unlock()
		close(done)
		s.logger.Info("Approval polling stopped")
	}()

	s.tickAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickAndLog(ctx)
		}
	}
}

func (s *Supervisor) tickAndLog(ctx context.Context) {
	if _, _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
		s.logger.WarnContext(ctx, "Pending count fetch failed", "error", err)
	}
}

// Tick fetches the count once and applies the alert rule: growth from zero
// is treated as the initial load and stays silent, any other growth raises
// an alert and publishes new-approvals. The stored count is updated after
// every successful fetch; a failed fetch leaves it untouched.
func (s *Supervisor) Tick(ctx context.Context) (Alert, bool, error) {
	current, err := s.counter.PendingCount(ctx)
	if err != nil {
		return Alert{}, false, fmt.Errorf("fetch pending count: %w", err)
	}

	s.mu.Lock()
	previous := s.previous
	s.previous = current
	user := s.user
	s.mu.Unlock()

	if previous == 0 && current > 0 {
		s.logger.DebugContext(ctx, "Initial pending count", "count", current)
		return Alert{}, false, nil
	}
	if current <= previous {
		return Alert{}, false, nil
	}

	a := Alert{User: user, Previous: previous, Current: current, Delta: current - previous, At: time.Now()}
	s.logger.InfoContext(ctx, "New approvals pending", "previous", previous, "current", current, "delta", a.Delta)

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, a); err != nil {
			s.logger.WarnContext(ctx, "Alert failed", "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, bus.Event{Signal: bus.NewApprovals, Kind: "expense"}); err != nil {
			s.logger.WarnContext(ctx, "Publish new-approvals failed", "error", err)
		}
	}
	return a, true, nil
}
