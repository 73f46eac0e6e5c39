package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ojarva-net/sso-frontend/internal/domain"
)

type apiError struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

func mapDomainError(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid username or password"
	case errors.Is(err, domain.ErrTicketExpired):
		return http.StatusUnauthorized, "TICKET_EXPIRED", "ticket expired"
	case errors.Is(err, domain.ErrBotAgent):
		return http.StatusForbidden, "BOT_AGENT", "automated agents are not served here"
	case errors.Is(err, domain.ErrInvalidIdentityURL):
		return http.StatusBadRequest, "INVALID_IDENTITY", "invalid identity URL"
	case errors.Is(err, domain.ErrNoPendingRequest):
		return http.StatusBadRequest, "NO_PENDING_REQUEST", "no pending authentication request"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}
