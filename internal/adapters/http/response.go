package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"loan-payment-service/internal/core/domain"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// writeJSON sends body with the given status.
func writeJSON(w http.ResponseWriter, status int, body any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to write json response", "error", err)
	}
}

// writeJSONError is a helper for sending errors in JSON format.
func writeJSONError(w http.ResponseWriter, kind, message string, status int, logger *slog.Logger) {
	writeJSON(w, status, ErrorResponse{
		Error:     kind,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}, logger)
}

// writeDomainError maps a service error onto a status code. Infrastructure
// failures never leak their cause to the client.
func writeDomainError(w http.ResponseWriter, err error, logger *slog.Logger) {
	kind := domain.Kind(err)
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrExceedsOutstanding),
		errors.Is(err, domain.ErrInvalidLoan):
		writeJSONError(w, kind, err.Error(), http.StatusBadRequest, logger)

	case errors.Is(err, domain.ErrLoanNotFound):
		writeJSONError(w, kind, err.Error(), http.StatusNotFound, logger)

	case errors.Is(err, domain.ErrAlreadySettled):
		writeJSONError(w, kind, err.Error(), http.StatusConflict, logger)

	case kind == "ServiceUnavailable":
		logger.Warn("temporary failure in external dependency", "error", err)
		writeJSONError(w, kind, "service temporarily unavailable", http.StatusServiceUnavailable, logger)

	default:
		logger.Error("unexpected error", "error", err)
		writeJSONError(w, kind, "internal server error", http.StatusInternalServerError, logger)
	}
}
