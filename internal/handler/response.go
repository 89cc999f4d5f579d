package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
//	writeJSON(w, http.StatusOK, data)
//	writeError(w, err)
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//
//	{"error": "validation_error", "message": "You can't have an empty list item",
//	 "field": "text", "input": "  "}
//
// "field" and "input" only appear on validation errors. Echoing the caller's
// input lets a form be re-shown without losing what was typed.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/superlists/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string  `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string  `json:"message"`         // Human-readable description
	Field   string  `json:"field,omitempty"` // Input field at fault, validation only
	Input   *string `json:"input,omitempty"` // The caller's original value, validation only
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE the body is written; once Encode
// writes, later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// errors.Is() walks the whole chain, so a service-wrapped error still matches:
//
//	service returns: fmt.Errorf("service/list: adding item: %w", apperror.DuplicateItem("text"))
//	which wraps:     AppError{Err: ErrDuplicateItem}
//	which wraps:     ErrValidation ✓ match → 400
func writeError(w http.ResponseWriter, err error) {
	writeErrorWithInput(w, err, nil)
}

// writeErrorWithInput is writeError that echoes input back on validation errors.
func writeErrorWithInput(w http.ResponseWriter, err error, input *string) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"
		resp := ErrorResponse{Message: appErr.Message}

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest // 400
			errorType = "validation_error"
			resp.Field = appErr.Field
			resp.Input = input
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound // 404
			errorType = "not_found"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden // 403
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrRateLimited):
			status = http.StatusTooManyRequests // 429
			errorType = "rate_limited"
		}

		resp.Error = errorType
		writeJSON(w, status, resp)
		return
	}

	// Unknown error (a storage fault). The raw message may contain SQL or
	// file paths, so the client only gets a generic 500.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a JSON request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "Invalid JSON body")
	}
	return nil
}
