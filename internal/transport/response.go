package transport

import (
	"encoding/json"
	"net/http"

	"github.com/agentfleet/conductor/pkg/types"
)

// errorResponse mirrors the teacher's ErrorResponse/ErrorDetail envelope,
// generalized from a single provider's error codes to conductor's
// ErrorKind taxonomy. It carries the same ErrorKind codes a CommandResult
// does, but in its own {"error": {"code", "message"}} envelope rather than
// the CommandResult shape; the HTTP transport uses it for requests it
// rejects before dispatch.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    types.ErrorKind `json:"code"`
	Message string          `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code types.ErrorKind, message string) {
	writeJSON(w, status, errorResponse{Error: errorDetail{Code: code, Message: message}})
}

// statusForKind maps conductor's ErrorKind taxonomy onto HTTP status
// codes for the REST surface; the line-framed Unix/TCP transports
// don't need this since they carry the kind verbatim in CommandResult.
func statusForKind(kind types.ErrorKind) int {
	switch kind {
	case types.ErrInvalidInput:
		return http.StatusBadRequest
	case types.ErrNotFound:
		return http.StatusNotFound
	case types.ErrConflict:
		return http.StatusConflict
	case types.ErrInvalidState:
		return http.StatusUnprocessableEntity
	case types.ErrTimeout:
		return http.StatusGatewayTimeout
	case types.ErrCancelled:
		return http.StatusRequestTimeout
	case types.ErrBudgetExceeded:
		return http.StatusTooManyRequests
	case types.ErrBackendError, types.ErrUpstreamError:
		return http.StatusBadGateway
	case types.ErrCircuitOpen:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
