package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ENVELOPE:
// Every JSON response has the same outer shape:
//
//	{"success": true,  "data": {...}, "message": "..."}
//	{"success": false, "error": {"message": "...", "code": "NOT_FOUND"}}
//
// The frontend always knows what fields to expect, whatever the status.

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/userdesk/internal/apperror"
)

// Envelope is the standard JSON response body.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Message string     `json:"message,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody is the error part of an Envelope.
type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE the body. Once Encode writes,
// the headers are on the wire and later changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeSuccess sends {"success":true, ...}.
func writeSuccess(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, Envelope{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// writeError maps an error to its status and code and sends the envelope.
//
// errors.Is/As walk the wrap chain, so a service can return
// fmt.Errorf("...: %w", apperror.NotFound(...)) and still get a 404.
//
// Anything that isn't an AppError is a 500 with a generic message: the raw
// error may contain SQL, file paths or other internals. It is logged instead.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := apperror.Status(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", slog.Any("error", err))
	}

	writeJSON(w, status, Envelope{
		Success: false,
		Error: &ErrorBody{
			Message: apperror.PublicMessage(err),
			Code:    apperror.Code(err),
		},
	})
}

// NotFound is the fallback for unknown routes.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, Envelope{
		Success: false,
		Error: &ErrorBody{
			Message: "Route not found",
			Code:    apperror.CodeNotFound,
		},
	})
}
