package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"cassa/internal/auth"
	"cassa/internal/core"
	"cassa/internal/export"
	"cassa/internal/filter"
	"cassa/internal/log"
	"cassa/internal/services"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   any    `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func metaOf[T any](p services.Page[T]) *Meta {
	return &Meta{Page: p.Page, Limit: p.PageSize, Total: p.Total, TotalPages: p.TotalPages}
}

func JSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func Success(w http.ResponseWriter, statusCode int, message string, data any) {
	JSON(w, statusCode, Response{Success: true, Message: message, Data: data})
}

func SuccessWithMeta(w http.ResponseWriter, statusCode int, message string, data any, meta *Meta) {
	JSON(w, statusCode, Response{Success: true, Message: message, Data: data, Meta: meta})
}

func Error(w http.ResponseWriter, statusCode int, message string, err any) {
	JSON(w, statusCode, Response{Success: false, Message: message, Error: err})
}

// ValidationError reports request shape problems found before any service
// call.
func ValidationError(w http.ResponseWriter, errors any) {
	Error(w, http.StatusBadRequest, "Validation failed", errors)
}

func Unauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Unauthorized"
	}
	Error(w, http.StatusUnauthorized, message, nil)
}

func Forbidden(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Forbidden"
	}
	Error(w, http.StatusForbidden, message, nil)
}

func NotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Resource not found"
	}
	Error(w, http.StatusNotFound, message, nil)
}

func InternalServerError(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Internal server error"
	}
	Error(w, http.StatusInternalServerError, message, nil)
}

// writeError maps service errors to statuses. Anything unrecognised is
// logged and reported as a 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var fe *core.FieldError
	switch {
	case errors.As(err, &fe):
		Error(w, http.StatusUnprocessableEntity, "Validation failed", map[string]string{fe.Field: fe.Err.Error()})
	case errors.Is(err, core.ErrNotFound):
		NotFound(w, "")
	case errors.Is(err, core.ErrForbidden):
		Forbidden(w, "")
	case errors.Is(err, core.ErrInvalidState):
		Error(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, core.ErrUnauthorized), errors.Is(err, auth.ErrInvalidToken):
		Unauthorized(w, err.Error())
	case errors.Is(err, services.ErrInvalidSort),
		errors.Is(err, export.ErrUnknownFormat),
		errors.Is(err, filter.ErrInvalidType),
		errors.Is(err, filter.ErrInvalidValue),
		errors.Is(err, filter.ErrShape),
		errors.Is(err, filter.ErrReversed):
		Error(w, http.StatusBadRequest, err.Error(), nil)
	default:
		log.LogError(r.Context(), "Request failed", err, op, log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, "", ""))
		InternalServerError(w, "")
	}
}
