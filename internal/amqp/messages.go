package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"cassa/internal/bus"
)

// SignalMessage is a bus event on the wire. Origin names the process that
// raised it so that process can skip its own echo.
type SignalMessage struct {
	Signal    bus.Signal `json:"signal"`
	Kind      string     `json:"kind,omitempty"`
	ID        int64      `json:"id,omitempty"`
	Origin    string     `json:"origin"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewSignalMessage wraps a local event for publishing.
func NewSignalMessage(ev bus.Event) *SignalMessage {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &SignalMessage{
		Signal:    ev.Signal,
		Kind:      ev.Kind,
		ID:        ev.ID,
		Origin:    ev.Origin,
		Timestamp: ts,
	}
}

func (m *SignalMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SignalMessageFromJSON decodes a message and rejects signals this build
// does not know.
func SignalMessageFromJSON(data []byte) (*SignalMessage, error) {
	var msg SignalMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Signal.Valid() {
		return nil, fmt.Errorf("unknown signal %q", msg.Signal)
	}
	return &msg, nil
}

// Event turns the message back into a bus event marked as remote.
func (m *SignalMessage) Event() bus.Event {
	return bus.Event{
		Signal: m.Signal,
		Kind:   m.Kind,
		ID:     m.ID,
		At:     m.Timestamp,
		Origin: m.Origin,
		Remote: true,
	}
}
