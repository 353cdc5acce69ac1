package common

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrorBody represents a consistent error payload returned by the API.
type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Details any    `json:"details,omitempty"`
}

// JSON writes the provided value to the response writer as JSON.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError renders an error response using the canonical error shape.
func JSONError(w http.ResponseWriter, status int, errType, message string, details any) {
	JSON(w, status, map[string]any{
		"error": ErrorBody{
			Message: message,
			Type:    errType,
			Details: details,
		},
	})
}

// WriteError renders err. AppErrors keep their status, type and message; anything
// else becomes a generic 500 whose cause is only exposed when exposeDetails is set.
func WriteError(w http.ResponseWriter, err error, exposeDetails bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		JSONError(w, status, appErr.Type, appErr.Message, appErr.Details)
		return
	}
	var details any
	if exposeDetails && err != nil {
		details = err.Error()
	}
	JSONError(w, http.StatusInternalServerError, "", "Internal server error", details)
}
