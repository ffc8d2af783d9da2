package handler

import (
	"errors"
	"net/http"

	"github.com/ayo6706/ebanking-core/internal/api/problem"
	"github.com/ayo6706/ebanking-core/internal/models"
	"go.uber.org/zap"
)

const retryAfterSeconds = 1

// RespondServiceError maps service error kinds onto problem responses.
func RespondServiceError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		RespondError(w, r, http.StatusNotFound, "resource/not-found", err.Error())
	case errors.Is(err, models.ErrInvalidArgument):
		RespondError(w, r, http.StatusBadRequest, "request/invalid-argument", err.Error())
	case errors.Is(err, models.ErrAuthMismatch):
		RespondError(w, r, http.StatusForbidden, "auth/value-mismatch", "value mismatch")
	case errors.Is(err, models.ErrAccountNotCleared):
		RespondError(w, r, http.StatusUnprocessableEntity, "account/not-cleared", err.Error())
	case errors.Is(err, models.ErrAccountNotActivated):
		RespondError(w, r, http.StatusUnprocessableEntity, "account/not-activated", err.Error())
	case errors.Is(err, models.ErrInsufficientFunds):
		RespondError(w, r, http.StatusUnprocessableEntity, "transfer/insufficient-funds", "insufficient funds")
	case errors.Is(err, models.ErrConflict):
		problem.WriteRetryable(w, r, http.StatusConflict, problem.Type("resource/conflict"), "request conflicted with a concurrent change", retryAfterSeconds)
	case errors.Is(err, models.ErrUnavailable):
		problem.WriteRetryable(w, r, http.StatusServiceUnavailable, problem.Type("service/unavailable"), "service temporarily unavailable", retryAfterSeconds)
	default:
		zap.L().Error(operation+" failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "internal-server-error", operation+" failed")
	}
}
