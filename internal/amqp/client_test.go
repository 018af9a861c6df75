package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"cassa/internal/bus"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
		{64, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"unexpected EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"not connected", fmt.Errorf("publish: %w", ErrNotConnected), true},
		{"circuit open", ErrCircuitOpen, false},
		{"other error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestBridge_CircuitBreaker(t *testing.T) {
	br := NewBridge(Config{Exchange: "test_exchange"}, bus.New("a", nil))

	t.Run("initial state is closed", func(t *testing.T) {
		if br.isCircuitOpen() {
			t.Error("circuit should be closed initially")
		}
	})

	t.Run("failures open the circuit", func(t *testing.T) {
		for range maxFailures {
			br.recordFailure()
		}
		if !br.isCircuitOpen() {
			t.Error("circuit should be open after max failures")
		}
	})

	t.Run("half-open after timeout", func(t *testing.T) {
		br.lastFailure = time.Now().Add(-openTimeout - time.Second)
		if br.isCircuitOpen() {
			t.Error("circuit should let a request through after the timeout")
		}
		if br.state.Load() != StateHalfOpen {
			t.Errorf("state = %d, want half-open", br.state.Load())
		}
	})

	t.Run("failure while half-open reopens", func(t *testing.T) {
		br.recordFailure()
		if br.state.Load() != StateOpen {
			t.Errorf("state = %d, want open", br.state.Load())
		}
	})

	t.Run("success closes", func(t *testing.T) {
		br.recordSuccess()
		if br.isCircuitOpen() || br.failureCount.Load() != 0 {
			t.Error("circuit should be closed and reset after success")
		}
	})
}

func TestBridge_Publish(t *testing.T) {
	br := NewBridge(Config{Exchange: "test_exchange"}, bus.New("a", nil))
	ev := bus.Event{Signal: bus.DataMutated}

	t.Run("not connected", func(t *testing.T) {
		if err := br.Publish(context.Background(), ev); !errors.Is(err, ErrNotConnected) {
			t.Errorf("err = %v, want ErrNotConnected", err)
		}
	})

	t.Run("circuit open", func(t *testing.T) {
		br.state.Store(StateOpen)
		br.lastFailure = time.Now()
		defer br.recordSuccess()

		err := br.Publish(context.Background(), ev)
		if err == nil || !strings.Contains(err.Error(), "circuit breaker is open") {
			t.Errorf("err = %v, want circuit breaker error", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := br.Publish(ctx, ev); !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}

func TestBridge_Forward(t *testing.T) {
	br := NewBridge(Config{}, bus.New("a", nil))
	ctx := context.Background()

	if err := br.Forward(ctx, bus.Event{Signal: bus.DataMutated, Remote: true}); err != nil {
		t.Fatalf("Forward remote: %v", err)
	}
	if len(br.outbox) != 0 {
		t.Fatal("remote event queued for publishing")
	}

	for i := range outboxSize {
		if err := br.Forward(ctx, bus.Event{Signal: bus.DataMutated, ID: int64(i)}); err != nil {
			t.Fatalf("Forward %d: %v", i, err)
		}
	}
	if err := br.Forward(ctx, bus.Event{Signal: bus.DataMutated}); !errors.Is(err, errOutboxFull) {
		t.Errorf("Forward on full outbox: err = %v, want errOutboxFull", err)
	}
}

func TestBridge_HandleDelivery(t *testing.T) {
	b := bus.New("a", nil)
	br := NewBridge(Config{}, b)
	ctx := context.Background()

	b.SubscribeAll(br.Forward)
	var got []bus.Event
	b.SubscribeAll(func(_ context.Context, ev bus.Event) error {
		got = append(got, ev)
		return nil
	})

	encode := func(origin string) []byte {
		body, err := NewSignalMessage(bus.Event{Signal: bus.CalendarChanged, Kind: "event", ID: 4, Origin: origin}).ToJSON()
		if err != nil {
			t.Fatalf("ToJSON: %v", err)
		}
		return body
	}

	if err := br.handleDelivery(ctx, encode("a")); err != nil {
		t.Fatalf("own echo: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("own echo republished: %+v", got)
	}

	if err := br.handleDelivery(ctx, encode("b")); err != nil {
		t.Fatalf("remote: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if ev := got[0]; !ev.Remote || ev.Origin != "b" || ev.Signal != bus.CalendarChanged || ev.ID != 4 {
		t.Errorf("event = %+v", ev)
	}

	// republished events are not queued back to the broker
	if len(br.outbox) != 0 {
		t.Error("remote event looped back to the outbox")
	}

	if err := br.handleDelivery(ctx, []byte(`{"signal":"reload","origin":"b"}`)); err == nil {
		t.Error("unknown signal accepted")
	}
}

func TestSignalMessage(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	msg := NewSignalMessage(bus.Event{Signal: bus.NewApprovals, Kind: "expense", ID: 9, At: at, Origin: "web-1"})

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	parsed, err := SignalMessageFromJSON(body)
	if err != nil {
		t.Fatalf("SignalMessageFromJSON: %v", err)
	}

	ev := parsed.Event()
	if ev.Signal != bus.NewApprovals || ev.Kind != "expense" || ev.ID != 9 || !ev.At.Equal(at) || ev.Origin != "web-1" || !ev.Remote {
		t.Errorf("event = %+v", ev)
	}

	if NewSignalMessage(bus.Event{Signal: bus.DataMutated}).Timestamp.IsZero() {
		t.Error("zero event time not defaulted")
	}
	if _, err := SignalMessageFromJSON([]byte(`{"signal": 3}`)); err == nil {
		t.Error("invalid JSON accepted")
	}
}
