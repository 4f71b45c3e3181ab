package domain

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ForbiddenError indicates authorization failure
	ForbiddenError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string  { return e.Message }
func (e *ForbiddenError) Error() string { return e.Message }

func (e *NotFoundError) StatusCode() int  { return http.StatusNotFound }
func (e *ForbiddenError) StatusCode() int { return http.StatusForbidden }

func (e *NotFoundError) Is(target error) bool  { return target == ErrNotFound }
func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("already exists")
	ErrValidation    = errors.New("validation failed")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrLimitExceeded = errors.New("usage limit exceeded")
	ErrRateLimited   = errors.New("too many requests")
	ErrCapReached    = errors.New("capacity reached")
)

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // Type of resource (tool_server, ...)
	ResourceID   string // ID of the existing/conflicting resource
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// FieldErrors is a validation failure keyed by request field.
// Matches ErrValidation with errors.Is.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e[field]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e FieldErrors) StatusCode() int { return http.StatusBadRequest }

func (e FieldErrors) Is(target error) bool { return target == ErrValidation }

// LimitExceededError signals that the caller's usage quota is spent.
// It is not retryable; the caller shows an upgrade prompt instead.
type LimitExceededError struct {
	Code           string
	Plan           string
	Used           int
	Limit          int
	IsTrial        bool
	TrialExpiresAt *time.Time
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("usage limit reached (%d/%d on %s plan)", e.Used, e.Limit, e.Plan)
}

func (e *LimitExceededError) StatusCode() int { return http.StatusTooManyRequests }

func (e *LimitExceededError) Is(target error) bool { return target == ErrLimitExceeded }
