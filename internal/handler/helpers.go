package handler

import (
	"errors"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"margin/internal/domain"
	"margin/internal/httputil"
)

// PathParam reads a required path value, writing a 400 when it is missing
func PathParam(w http.ResponseWriter, r *http.Request, name, label string) (string, bool) {
	value := r.PathValue(name)
	if value == "" {
		httputil.RespondError(w, http.StatusBadRequest, label+" is required")
		return "", false
	}
	return value, true
}

// parseUUID checks that value is a UUID, writing a 400 when it is not
func parseUUID(w http.ResponseWriter, value, label string) bool {
	if _, err := uuid.Parse(value); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, label+" must be a UUID")
		return false
	}
	return true
}

// queryInt reads an optional positive integer query value clamped to max
func queryInt(r *http.Request, key string, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// toFieldErrors converts ozzo validation errors, keyed by JSON field name
func toFieldErrors(err error) error {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(domain.FieldErrors, len(verrs))
	for field, ferr := range verrs {
		out[field] = ferr.Error()
	}
	return out
}
