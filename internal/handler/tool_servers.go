package handler

import (
	"log/slog"
	"net/http"

	"margin/internal/domain/models"
	"margin/internal/domain/services"
	"margin/internal/httputil"
)

// ToolServerHandler manages the caller's external tool servers.
// Every route requires the tool server capability.
type ToolServerHandler struct {
	service    services.ToolServerService
	authorizer services.ResourceAuthorizer
	logger     *slog.Logger
}

// NewToolServerHandler creates a new tool server handler
func NewToolServerHandler(service services.ToolServerService, authorizer services.ResourceAuthorizer, logger *slog.Logger) *ToolServerHandler {
	return &ToolServerHandler{service: service, authorizer: authorizer, logger: logger}
}

// allowed writes 403 unless the caller may manage tool servers
func (h *ToolServerHandler) allowed(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := httputil.GetUserID(r)
	if err := h.authorizer.CanManageToolServers(r.Context(), userID, httputil.GetEmail(r)); err != nil {
		handleError(w, err, h.logger)
		return "", false
	}
	return userID, true
}

// List returns the caller's tool servers
// GET /api/tool-servers
func (h *ToolServerHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.allowed(w, r)
	if !ok {
		return
	}

	servers, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	if servers == nil {
		servers = []models.ToolServerConfig{}
	}
	httputil.RespondJSON(w, http.StatusOK, servers)
}

// Create adds a tool server
// POST /api/tool-servers
// Returns 409 with the existing id when the name is taken
func (h *ToolServerHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.allowed(w, r)
	if !ok {
		return
	}

	var req models.CreateToolServerRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.OwnerID = userID

	server, err := h.service.Create(r.Context(), &req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, server)
}

// Update changes a tool server's fields
// PATCH /api/tool-servers/{id}
func (h *ToolServerHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.allowed(w, r)
	if !ok {
		return
	}
	id, ok := PathParam(w, r, "id", "Tool server ID")
	if !ok || !parseUUID(w, id, "Tool server ID") {
		return
	}

	var req models.UpdateToolServerRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	server, err := h.service.Update(r.Context(), userID, id, &req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, server)
}

// Delete removes a tool server
// DELETE /api/tool-servers/{id}
func (h *ToolServerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.allowed(w, r)
	if !ok {
		return
	}
	id, ok := PathParam(w, r, "id", "Tool server ID")
	if !ok || !parseUUID(w, id, "Tool server ID") {
		return
	}

	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		handleError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Test connects to a candidate server and lists its tools without saving it
// POST /api/tool-servers/test
// A failed connection is a 200 with ok=false; only invalid input is an error.
func (h *ToolServerHandler) Test(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.allowed(w, r)
	if !ok {
		return
	}

	var req models.CreateToolServerRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.OwnerID = userID

	result, err := h.service.Test(r.Context(), &req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, result)
}
