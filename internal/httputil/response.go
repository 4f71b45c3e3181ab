package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// RespondJSON writes a JSON response with the given status code.
// The payload is marshaled first so an encoding failure still yields a clean 500.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

// ProblemDetail represents an RFC 7807 Problem Details response
type ProblemDetail struct {
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	Status   int                    `json:"status"`
	Detail   string                 `json:"detail,omitempty"`
	Instance string                 `json:"instance,omitempty"`
	Extra    map[string]interface{} `json:"-"`
}

// MarshalJSON flattens Extra into the top level object
func (p ProblemDetail) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{
		"type":   p.Type,
		"title":  p.Title,
		"status": p.Status,
	}
	if p.Detail != "" {
		m["detail"] = p.Detail
	}
	if p.Instance != "" {
		m["instance"] = p.Instance
	}
	for k, v := range p.Extra {
		m[k] = v
	}
	return json.Marshal(m)
}

// RespondError writes an RFC 7807 Problem Details error response
func RespondError(w http.ResponseWriter, status int, detail string) {
	RespondErrorWithExtras(w, status, detail, nil)
}

// RespondErrorWithExtras writes an RFC 7807 error with additional top level fields
func RespondErrorWithExtras(w http.ResponseWriter, status int, detail string, extras map[string]interface{}) {
	problem := ProblemDetail{
		Type:   errorTypeFromStatus(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Extra:  extras,
	}

	payload, err := json.Marshal(problem)
	if err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	w.Write(payload)
}

// RespondValidation writes a 400 listing the failing fields under "errors"
func RespondValidation(w http.ResponseWriter, detail string, fields map[string]string) {
	RespondErrorWithExtras(w, http.StatusBadRequest, detail, map[string]interface{}{
		"errors": fields,
	})
}

// Quota describes a spent usage allowance
type Quota struct {
	Code           string
	Plan           string
	Used           int
	Limit          int
	IsTrial        bool
	TrialExpiresAt *time.Time
}

// RespondLimitExceeded writes the 429 the client turns into an upgrade prompt
func RespondLimitExceeded(w http.ResponseWriter, q Quota) {
	RespondErrorWithExtras(w, http.StatusTooManyRequests, "usage limit reached", map[string]interface{}{
		"error":          "Usage limit reached",
		"code":           q.Code,
		"plan":           q.Plan,
		"used":           q.Used,
		"limit":          q.Limit,
		"isTrial":        q.IsTrial,
		"trialExpiresAt": q.TrialExpiresAt,
	})
}

// RespondRateLimited writes a 429 for request bursts
func RespondRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	RespondErrorWithExtras(w, http.StatusTooManyRequests, "too many requests", map[string]interface{}{
		"error": "Too many requests",
		"code":  "RATE_LIMITED",
	})
}

// errorTypeFromStatus returns the RFC 7807 type URI for a status code
func errorTypeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.5.1"
	case http.StatusUnauthorized:
		return "https://datatracker.ietf.org/doc/html/rfc7235#section-3.1"
	case http.StatusForbidden:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.5.3"
	case http.StatusNotFound:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.5.4"
	case http.StatusConflict:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.5.8"
	case http.StatusTooManyRequests:
		return "https://datatracker.ietf.org/doc/html/rfc6585#section-4"
	case http.StatusInternalServerError:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.6.1"
	default:
		return "about:blank"
	}
}
