package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// ErrorResponse is the envelope for every failed API call.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
}

// StatusCoder is implemented by domain errors that know how they render.
type StatusCoder interface {
	error
	HTTPStatus() int
	ErrorCode() string
	PublicMessage() string
}

// WriteError writes a JSON error envelope with the given status code.
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Success:   false,
		Message:   message,
		ErrorCode: errorCode,
	})
}

// WriteAppError renders err at the boundary. Typed errors keep their status,
// code and message; anything else becomes a generic 500 and is logged.
func WriteAppError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var sc StatusCoder
	if errors.As(err, &sc) {
		if sc.HTTPStatus() >= http.StatusInternalServerError && logger != nil {
			logger.Error("request failed", slog.String("error", err.Error()))
		}
		WriteError(w, sc.HTTPStatus(), sc.ErrorCode(), sc.PublicMessage())
		return
	}

	if logger != nil {
		logger.Error("unhandled error", slog.String("error", err.Error()))
	}
	WriteInternalError(w, "Something went wrong")
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "BAD_REQUEST", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "FORBIDDEN", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "NOT_FOUND", message)
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", message)
}
