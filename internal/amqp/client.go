// Package amqp bridges the in-process bus across processes. Every process
// publishes its local events to a fanout exchange and republishes the
// events of the others on its own bus.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"cassa/internal/bus"
	"cassa/internal/log"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
	outboxSize     = 256
)

var (
	ErrCircuitOpen  = errors.New("circuit breaker is open")
	ErrNotConnected = errors.New("not connected to broker")

	errOutboxFull       = errors.New("amqp outbox full, event dropped")
	errConnectionClosed = errors.New("connection closed")
)

type Config struct {
	URL      string
	Exchange string
	Logger   *log.Logger
}

// Bridge relays bus events over a fanout exchange. Each process consumes
// from its own exclusive queue, so every process sees every event once.
type Bridge struct {
	url      string
	exchange string
	bus      *bus.Bus
	logger   *log.Logger
	outbox   chan bus.Event

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        atomic.Int32
	failureCount atomic.Int64
	failMu       sync.Mutex
	lastFailure  time.Time
}

// NewBridge creates a bridge for b. Nothing is dialled until Run.
func NewBridge(cfg Config, b *bus.Bus) *Bridge {
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	return &Bridge{
		url:      cfg.URL,
		exchange: cfg.Exchange,
		bus:      b,
		logger:   cfg.Logger.WithComponent(log.ComponentAMQP),
		outbox:   make(chan bus.Event, outboxSize),
	}
}

// Forward queues a local event for publishing. Events that arrived from
// the broker are not sent back. It never blocks the publisher.
func (br *Bridge) Forward(_ context.Context, ev bus.Event) error {
	if ev.Remote {
		return nil
	}
	select {
	case br.outbox <- ev:
		return nil
	default:
		return errOutboxFull
	}
}

// Run subscribes to the bus and relays events until ctx is done,
// reconnecting with exponential backoff when the broker goes away.
func (br *Bridge) Run(ctx context.Context) error {
	unsubscribe := br.bus.SubscribeAll(br.Forward)
	defer unsubscribe()
	defer br.Close()

	attempt := 0
	for {
		deliveries, closed, err := br.connect()
		if err != nil {
			wait := exponentialBackoff(attempt)
			attempt++
			br.logger.WarnContext(ctx, "AMQP connect failed",
				"error", err,
				"attempt", attempt,
				"retry_in", wait)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}
		attempt = 0
		br.logger.InfoContext(ctx, "AMQP bridge connected", "exchange", br.exchange, "origin", br.bus.Origin())

		err = br.serve(ctx, deliveries, closed)
		br.Close()
		if ctx.Err() != nil {
			br.logger.InfoContext(ctx, "AMQP bridge stopped")
			return nil
		}
		br.logger.WarnContext(ctx, "AMQP connection lost", "error", err)
	}
}

func (br *Bridge) connect() (<-chan amqp091.Delivery, <-chan *amqp091.Error, error) {
	conn, err := amqp091.Dial(br.url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	deliveries, err := setup(ch, br.exchange)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	closed := conn.NotifyClose(make(chan *amqp091.Error, 1))

	br.mu.Lock()
	br.conn, br.channel = conn, ch
	br.mu.Unlock()
	br.recordSuccess()
	return deliveries, closed, nil
}

func setup(ch *amqp091.Channel, exchange string) (<-chan amqp091.Delivery, error) {
	err := ch.ExchangeDeclare(
		exchange, // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	// server-named queue that lives as long as this connection
	q, err := ch.QueueDeclare(
		"",    // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	deliveries, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack, signals are only refresh hints
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return nil, fmt.Errorf("start consuming: %w", err)
	}
	return deliveries, nil
}

func (br *Bridge) serve(ctx context.Context, deliveries <-chan amqp091.Delivery, closed <-chan *amqp091.Error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr, ok := <-closed:
			if !ok || amqpErr == nil {
				return errConnectionClosed
			}
			return amqpErr
		case d, ok := <-deliveries:
			if !ok {
				return errConnectionClosed
			}
			_ = br.handleDelivery(ctx, d.Body)
		case ev := <-br.outbox:
			if err := br.Publish(ctx, ev); err != nil {
				br.logger.WarnContext(ctx, "Failed to publish signal",
					"signal", ev.Signal,
					"error", err)
				if isConnectionError(err) {
					return err
				}
			}
		}
	}
}

// handleDelivery republishes a remote event on the local bus. Echoes of
// this process's own events are skipped.
func (br *Bridge) handleDelivery(ctx context.Context, body []byte) error {
	msg, err := SignalMessageFromJSON(body)
	if err != nil {
		br.logger.ErrorContext(ctx, "Failed to unmarshal signal message", "error", err)
		return err
	}
	if msg.Origin == br.bus.Origin() {
		return nil
	}

	br.logger.DebugContext(ctx, "Received remote signal",
		"signal", msg.Signal,
		"origin", msg.Origin)
	return br.bus.Publish(ctx, msg.Event())
}

// Publish sends ev to the exchange.
func (br *Bridge) Publish(ctx context.Context, ev bus.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if br.isCircuitOpen() {
		return ErrCircuitOpen
	}

	br.mu.Lock()
	ch := br.channel
	br.mu.Unlock()
	if ch == nil {
		return ErrNotConnected
	}

	body, err := NewSignalMessage(ev).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		br.exchange, // exchange
		"",          // routing key, ignored by fanout
		false,       // mandatory
		false,       // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
	if err != nil {
		br.recordFailure()
		return fmt.Errorf("publish %s: %w", ev.Signal, err)
	}
	br.recordSuccess()

	br.logger.DebugContext(ctx, "Published signal",
		"signal", ev.Signal,
		"kind", ev.Kind,
		"id", ev.ID,
		"exchange", br.exchange)
	return nil
}

// Close drops the current connection, if any.
func (br *Bridge) Close() error {
	br.mu.Lock()
	defer br.mu.Unlock()
	if br.channel != nil {
		br.channel.Close()
		br.channel = nil
	}
	if br.conn != nil {
		err := br.conn.Close()
		br.conn = nil
		if err != nil && !errors.Is(err, amqp091.ErrClosed) {
			return err
		}
	}
	return nil
}

func (br *Bridge) isCircuitOpen() bool {
	if br.state.Load() != StateOpen {
		return false
	}
	br.failMu.Lock()
	last := br.lastFailure
	br.failMu.Unlock()

	if time.Since(last) > openTimeout {
		br.state.CompareAndSwap(StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (br *Bridge) recordFailure() {
	n := br.failureCount.Add(1)
	br.failMu.Lock()
	br.lastFailure = time.Now()
	br.failMu.Unlock()

	if n >= maxFailures || br.state.Load() == StateHalfOpen {
		br.state.Store(StateOpen)
	}
}

func (br *Bridge) recordSuccess() {
	br.failureCount.Store(0)
	br.state.Store(StateClosed)
}

// exponentialBackoff returns 1s, 2s, 4s... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	return min(time.Second<<attempt, maxBackoff)
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) || errors.Is(err, ErrNotConnected) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection", "EOF", "broken pipe"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
