package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"margin/internal/domain"
	"margin/internal/httputil"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var (
		fieldErrs   domain.FieldErrors
		limitErr    *domain.LimitExceededError
		conflictErr *domain.ConflictError
	)

	switch {
	case errors.As(err, &fieldErrs):
		httputil.RespondValidation(w, "invalid request", fieldErrs)
	case errors.As(err, &limitErr):
		httputil.RespondLimitExceeded(w, httputil.Quota{
			Code:           limitErr.Code,
			Plan:           limitErr.Plan,
			Used:           limitErr.Used,
			Limit:          limitErr.Limit,
			IsTrial:        limitErr.IsTrial,
			TrialExpiresAt: limitErr.TrialExpiresAt,
		})
	case errors.As(err, &conflictErr):
		httputil.RespondErrorWithExtras(w, http.StatusConflict, conflictErr.Error(), map[string]interface{}{
			"resourceId": conflictErr.ResourceID,
		})
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, "forbidden")
	default:
		logger.Error("request failed", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
