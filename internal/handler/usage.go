package handler

import (
	"log/slog"
	"net/http"

	"margin/internal/domain/services"
	"margin/internal/httputil"
)

// UsageHandler reports the caller's usage allowance
type UsageHandler struct {
	gate   services.UsageGate
	logger *slog.Logger
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(gate services.UsageGate, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{gate: gate, logger: logger}
}

// GetUsage returns the current usage decision. Reading it never counts.
// GET /api/usage
func (h *UsageHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	decision, err := h.gate.Evaluate(r.Context(), httputil.GetUserID(r), httputil.GetEmail(r))
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, decision)
}

// HealthCheck reports liveness
// GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
