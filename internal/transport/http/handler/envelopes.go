package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/buxmate/buxmate/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// ResultEnvelope wraps operation results that carry a data payload.
type ResultEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// AuthEnvelope wraps login/register responses.
type AuthEnvelope struct {
	Bearer       string          `json:"Bearer,omitempty"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	Session      *domain.Session `json:"session,omitempty"`
	Message      string          `json:"message,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// PaginatedUsersEnvelope wraps paginated user list responses.
type PaginatedUsersEnvelope struct {
	Data       []domain.User `json:"data"`
	NextCursor string        `json:"next_cursor,omitempty"`
	Error      string        `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, ResultEnvelope{Success: true, Data: data})
}

// httpError maps a domain error to its HTTP status and response body. Rate
// limits and OTP mismatches carry structured payloads so clients can back off
// or show remaining attempts; everything unexpected collapses to a generic
// 500 with no internal detail.
func httpError(w http.ResponseWriter, err error) {
	var rle *domain.RateLimitedError
	if errors.As(err, &rle) {
		writeJSON(w, http.StatusTooManyRequests, ResultEnvelope{
			Error: "too many attempts, please wait before retrying",
			Data:  map[string]int64{"cooldown_seconds": rle.Cooldown},
		})
		return
	}
	var mismatch *domain.OTPMismatchError
	if errors.As(err, &mismatch) {
		writeJSON(w, http.StatusUnauthorized, ResultEnvelope{
			Error: "invalid code",
			Data:  map[string]int{"remaining_attempts": mismatch.RemainingAttempts},
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many attempts, please wait before retrying")
	case errors.Is(err, domain.ErrDispatchFailed):
		writeError(w, http.StatusBadGateway, "failed to send, please try again")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
