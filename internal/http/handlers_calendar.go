package http

import (
	"net/http"

	"cassa/internal/log"
)

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	d, err := s.descriptorFor(r)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	events, err := s.calendar.ListEvents(r.Context(), identity(r), d)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	Success(w, http.StatusOK, "", mapSlice(events, toEventResponse))
}

// handleOccurrences expands recurring events between from and to, both
// YYYY-MM-DD and inclusive.
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	from, err := parseQueryDate(r, "from")
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	to, err := parseQueryDate(r, "to")
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	occurrences, err := s.calendar.Occurrences(r.Context(), identity(r), from, to)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	Success(w, http.StatusOK, "", mapSlice(occurrences, toOccurrenceResponse))
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	ev, err := s.calendar.CreateEvent(r.Context(), identity(r), req.toEvent(0))
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	Success(w, http.StatusCreated, "Event created", toEventResponse(ev))
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req EventRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	ev, err := s.calendar.UpdateEvent(r.Context(), identity(r), req.toEvent(id))
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	Success(w, http.StatusOK, "Event updated", toEventResponse(ev))
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.calendar.DeleteEvent(r.Context(), identity(r), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	Success(w, http.StatusOK, "Event deleted", nil)
}
