package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cassa/internal/auth"
	"cassa/internal/bus"
	"cassa/internal/services"
)

const streamKeepAlive = 25 * time.Second

var errStreamFull = errors.New("signal stream buffer full, event dropped")

// visibleTo reports whether the stream of id should receive ev. Form
// signals only reach the user who raised them; new-approvals only admins.
func visibleTo(id auth.Identity, ev bus.Event) bool {
	switch ev.Signal {
	case bus.OpenIncomeForm, bus.OpenExpenseForm:
		return ev.Kind == services.KindUser && ev.ID == id.ID
	case bus.NewApprovals:
		return id.Role.IsAdmin()
	}
	return true
}

// handleSignalStream relays bus events as server-sent events until the
// client goes away. A slow client loses events instead of blocking
// publishers.
func (s *Server) handleSignalStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalServerError(w, "Streaming unsupported")
		return
	}
	id := identity(r)

	events := make(chan bus.Event, signalStreamBuffer)
	unsubscribe := s.bus.SubscribeAll(func(_ context.Context, ev bus.Event) error {
		if !visibleTo(id, ev) {
			return nil
		}
		select {
		case events <- ev:
			return nil
		default:
			return errStreamFull
		}
	})
	defer unsubscribe()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	s.logger.DebugContext(r.Context(), "Signal stream opened", "user_id", id.ID)
	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.DebugContext(r.Context(), "Signal stream closed", "user_id", id.ID)
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-events:
			if err := writeEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev bus.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Signal, data)
	return err
}

// handlePublishSignal lets a client ask its own views to open a form.
// Every other signal is raised by the server.
func (s *Server) handlePublishSignal(w http.ResponseWriter, r *http.Request) {
	sig := bus.Signal(r.PathValue("signal"))
	if !sig.Valid() {
		Error(w, http.StatusBadRequest, "Unknown signal", map[string]string{"signal": string(sig)})
		return
	}
	if sig != bus.OpenIncomeForm && sig != bus.OpenExpenseForm {
		Forbidden(w, "Signal is raised by the server")
		return
	}

	id := identity(r)
	if err := s.bus.Publish(r.Context(), bus.Event{Signal: sig, Kind: services.KindUser, ID: id.ID}); err != nil {
		writeError(w, r, "publish", err)
		return
	}
	Success(w, http.StatusAccepted, "Signal published", nil)
}
