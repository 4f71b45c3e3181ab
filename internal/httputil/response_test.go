package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRespondLimitExceeded(t *testing.T) {
	rec := httptest.NewRecorder()
	expires := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	RespondLimitExceeded(rec, Quota{Code: "TRIAL_LIMIT_EXCEEDED", Plan: "pro", Used: 100, Limit: 100, IsTrial: true, TrialExpiresAt: &expires})

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	want := map[string]interface{}{
		"code":           "TRIAL_LIMIT_EXCEEDED",
		"plan":           "pro",
		"used":           float64(100),
		"limit":          float64(100),
		"isTrial":        true,
		"trialExpiresAt": "2026-04-01T00:00:00Z",
		"status":         float64(429),
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("body[%q] = %v, want %v", k, body[k], v)
		}
	}
	if _, ok := body["error"]; !ok {
		t.Error("body missing error")
	}
}

func TestRespondValidation(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondValidation(rec, "invalid request", map[string]string{"message": "cannot be blank"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Errors["message"] != "cannot be blank" {
		t.Errorf("errors = %v", body.Errors)
	}
}

func TestRespondRateLimited(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondRateLimited(rec, 300*time.Millisecond)

	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", rec.Header().Get("Retry-After"))
	}
	var body map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["code"] != "RATE_LIMITED" {
		t.Errorf("code = %v", body["code"])
	}
}
