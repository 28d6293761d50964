package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/pkordes/fleet-calendar/internal/domain"
)

// errorDetail is the inner object of every error body.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorResponse is the {"error":{"code","message"}} envelope.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

// writeJSON encodes v with the given status. Encoding errors are ignored:
// the header is already sent and the client has gone.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorDetail{Code: code, Message: message}})
}

// notFound writes a 404. The caller supplies the message because the handler
// is the layer that knows what was being looked up.
func notFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, "not_found", message)
}

// validationFailed writes a 422 for a wrapped domain.ErrValidation.
func validationFailed(w http.ResponseWriter, err error) {
	writeError(w, http.StatusUnprocessableEntity, "validation_error", unwrapMessage(err))
}

// badRequest writes a 422 for input rejected before reaching the service layer.
func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnprocessableEntity, "validation_error", message)
}

func internalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

// moveError maps a Mover failure onto a status code and error code.
func moveError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity, "validation_error"
	case errors.Is(err, domain.ErrNotReschedulable):
		return http.StatusConflict, "not_reschedulable"
	case errors.Is(err, domain.ErrMoveInProgress):
		return http.StatusConflict, "move_in_progress"
	}
	return http.StatusBadGateway, "write_failed"
}

// unwrapMessage extracts the human-readable part from a wrapped sentinel error.
// e.g. "service.Mover.Move: validation error: invalid time \"25:00\"" → "invalid time \"25:00\""
func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	const marker = "validation error: "
	if i := strings.Index(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return msg
}
