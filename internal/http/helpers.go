package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"cassa/internal/auth"
	"cassa/internal/core"
	"cassa/internal/filter"
	"cassa/internal/services"
)

const maxBodyBytes = 1 << 20

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// decodeAndValidate reads a JSON body into dst and validates it. It writes
// the error response itself and reports whether the handler may go on.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return false
	}
	if err := s.validator.Validate(dst); err != nil {
		ValidationError(w, s.validator.FormatValidationErrors(err))
		return false
	}
	return true
}

// pathID reads a positive integer path value.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		Error(w, http.StatusBadRequest, "Invalid "+name, nil)
		return 0, false
	}
	return id, true
}

// identity returns the authenticated caller. Routes behind authenticate
// always have one.
func identity(r *http.Request) auth.Identity {
	id, _ := auth.IdentityFrom(r.Context())
	return id
}

// descriptorFor uses the query-string filter when present, else the one
// stored in the caller's session.
func (s *Server) descriptorFor(r *http.Request) (filter.Descriptor, error) {
	d, present, err := filter.FromQuery(r.URL.Query(), s.location)
	if err != nil {
		return filter.Descriptor{}, err
	}
	if present {
		return d, nil
	}
	return s.filters.Get(r, identity(r).ID), nil
}

// listQuery reads page, page_size, sort and the date filter.
func (s *Server) listQuery(r *http.Request) (services.ListQuery, error) {
	d, err := s.descriptorFor(r)
	if err != nil {
		return services.ListQuery{}, err
	}
	q := r.URL.Query()
	page, err := optionalInt(q.Get("page"))
	if err != nil {
		return services.ListQuery{}, &core.FieldError{Field: "page", Err: err}
	}
	size, err := optionalInt(q.Get("page_size"))
	if err != nil {
		return services.ListQuery{}, &core.FieldError{Field: "page_size", Err: err}
	}
	return services.ListQuery{Filter: d, Page: page, PageSize: size, Sort: strings.TrimSpace(q.Get("sort"))}, nil
}

var errNotANumber = errors.New("must be a number")

func optionalInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errNotANumber
	}
	return n, nil
}

// optionalID reads a non-negative id query value; empty means 0.
func optionalID(s, name string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, &core.FieldError{Field: name, Err: errNotANumber}
	}
	return id, nil
}

// parseQueryDate reads a required YYYY-MM-DD query value.
func parseQueryDate(r *http.Request, name string) (core.Date, error) {
	d, err := core.ParseDate(r.URL.Query().Get(name))
	if err != nil {
		return core.Date{}, &core.FieldError{Field: name, Err: err}
	}
	return d, nil
}
