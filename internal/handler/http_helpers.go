package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"tcees-validator/internal/domain"
	apperrors "tcees-validator/pkg/errors"
)

type contextKey string

const requestIDContextKey contextKey = "request_id"

// errorResponse mirrors the error shape of a ValidationResult so clients parse one format
type errorResponse struct {
	Verdict   domain.Verdict `json:"resultado_final"`
	Error     string         `json:"erro"`
	ErrorCode string         `json:"erro_codigo"`
}

// GetRequestIDFromContext extracts the request id set by RequestIDMiddleware
func GetRequestIDFromContext(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(requestIDContextKey).(string)
	return id, ok
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response (helper function)
func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, errorResponse{
		Verdict:   domain.VerdictError,
		Error:     message,
		ErrorCode: code,
	})
}

// writeAppError writes err using the status and client code of the AppError it wraps.
// Other errors become a 500 without leaking their text.
func writeAppError(w http.ResponseWriter, err error) {
	message := "Erro interno."
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	writeError(w, apperrors.GetStatusCode(err), apperrors.GetCode(err, domain.CodeValidationFailure), message)
}

// requestID returns the request id for log lines, or "-" outside RequestIDMiddleware
func requestID(r *http.Request) string {
	if id, ok := GetRequestIDFromContext(r); ok {
		return id
	}
	return "-"
}
