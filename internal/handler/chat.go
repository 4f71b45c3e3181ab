package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"margin/internal/config"
	"margin/internal/domain"
	"margin/internal/domain/models"
	"margin/internal/domain/services"
	"margin/internal/handler/sse"
	"margin/internal/httputil"
	"margin/internal/metrics"
	"margin/internal/service/llm/assistant"
)

// TurnRunner runs one assistant turn against an event sink
type TurnRunner interface {
	Run(ctx context.Context, req *assistant.TurnRequest, sink assistant.EventSink) (*models.ConversationMessage, error)
}

// HistoryReader reads a project's stored conversation
type HistoryReader interface {
	ListRecent(ctx context.Context, projectID string, limit int) ([]models.ConversationMessage, error)
}

// HighlightReader reads a project's stored highlights
type HighlightReader interface {
	List(ctx context.Context, projectID string) ([]models.Highlight, error)
}

// ChatHandler serves the assistant chat stream and its history
type ChatHandler struct {
	runner     TurnRunner
	turns      *assistant.TurnRegistry
	gate       services.UsageGate
	authorizer services.ResourceAuthorizer
	messages   HistoryReader
	highlights HighlightReader
	metrics    *metrics.Metrics
	sseConfig  *sse.Config
	logger     *slog.Logger
}

// ChatDeps groups ChatHandler's collaborators
type ChatDeps struct {
	Runner     TurnRunner
	Turns      *assistant.TurnRegistry
	Gate       services.UsageGate
	Authorizer services.ResourceAuthorizer
	Messages   HistoryReader
	Highlights HighlightReader
	Metrics    *metrics.Metrics
	SSE        *sse.Config
	Logger     *slog.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(deps ChatDeps) *ChatHandler {
	cfg := deps.SSE
	if cfg == nil {
		cfg = sse.DefaultConfig()
	}
	return &ChatHandler{
		runner:     deps.Runner,
		turns:      deps.Turns,
		gate:       deps.Gate,
		authorizer: deps.Authorizer,
		messages:   deps.Messages,
		highlights: deps.Highlights,
		metrics:    deps.Metrics,
		sseConfig:  cfg,
		logger:     deps.Logger,
	}
}

// chatRequest is the POST /api/chat body
type chatRequest struct {
	ProjectID string                     `json:"projectId"`
	Message   string                     `json:"message"`
	Pages     map[models.PageSlot]string `json:"pages"`
	ActiveTab models.PageSlot            `json:"activeTab"`
	Format    models.PageFormat          `json:"format"`
}

func (req *chatRequest) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.ProjectID, validation.Required, is.UUID),
		validation.Field(&req.Message, validation.Required, validation.RuneLength(1, config.MaxMessageLength)),
		validation.Field(&req.Pages, validation.By(validPages)),
		validation.Field(&req.ActiveTab, validation.Required, validation.By(validSlot)),
		validation.Field(&req.Format, validation.In(models.PageFormatMarkdown, models.PageFormatHTML)),
	)
}

func validSlot(value interface{}) error {
	slot, _ := value.(models.PageSlot)
	if !slot.IsValid() {
		return fmt.Errorf("must be one of brainstorm, outline, draft, revision, final")
	}
	return nil
}

func validPages(value interface{}) error {
	pages, _ := value.(map[models.PageSlot]string)
	for slot, content := range pages {
		if !slot.IsValid() {
			return fmt.Errorf("unknown page %q", slot)
		}
		if len([]rune(content)) > config.MaxPageLength {
			return fmt.Errorf("page %q exceeds %d characters", slot, config.MaxPageLength)
		}
	}
	return nil
}

// Chat runs one assistant turn and streams its events
// POST /api/chat
// Quota and validation failures are plain JSON errors; once the stream is
// open every outcome is an event.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	email := httputil.GetEmail(r)

	var req chatRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Format == "" {
		req.Format = models.PageFormatMarkdown
	}
	if err := req.Validate(); err != nil {
		handleError(w, toFieldErrors(err), h.logger)
		return
	}

	ctx := r.Context()
	if err := h.authorizer.CanAccessProject(ctx, userID, req.ProjectID); err != nil {
		handleError(w, err, h.logger)
		return
	}
	if _, err := h.gate.Check(ctx, userID, email); err != nil {
		handleError(w, err, h.logger)
		return
	}

	toolAccess := true
	if err := h.authorizer.CanManageToolServers(ctx, userID, email); err != nil {
		toolAccess = false
		if !errors.Is(err, domain.ErrForbidden) {
			h.logger.Warn("tool access check failed", "user_id", userID, "error", err)
		}
	}

	writer, err := sse.Open(w)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	turnCtx, release := h.turns.Begin(ctx, userID, req.ProjectID)
	defer release()
	defer h.metrics.StreamOpened()()

	keepAlive := sse.StartKeepAlive(turnCtx, h.sseConfig.KeepAliveInterval, writer, h.logger)
	defer keepAlive.Stop()

	h.logger.Debug("chat turn started",
		"user_id", userID,
		"project_id", req.ProjectID,
		"active_tab", req.ActiveTab,
		"tool_access", toolAccess,
	)

	_, err = h.runner.Run(turnCtx, &assistant.TurnRequest{
		UserID:    userID,
		ProjectID: req.ProjectID,
		Message:   req.Message,
		Document: models.Document{
			Pages:     req.Pages,
			ActiveTab: req.ActiveTab,
			Format:    req.Format,
		},
		ToolAccess: toolAccess,
	}, writer)
	if err != nil {
		h.logger.Debug("chat turn ended with error", "user_id", userID, "project_id", req.ProjectID, "error", err)
	}
}

// Abort cancels the caller's in-flight turn on a project
// DELETE /api/chat/{projectId}
func (h *ChatHandler) Abort(w http.ResponseWriter, r *http.Request) {
	projectID, ok := PathParam(w, r, "projectId", "Project ID")
	if !ok || !parseUUID(w, projectID, "Project ID") {
		return
	}

	aborted := h.turns.Abort(httputil.GetUserID(r), projectID)
	httputil.RespondJSON(w, http.StatusOK, map[string]bool{"aborted": aborted})
}

// ListMessages returns the project's recent conversation, oldest first
// GET /api/projects/{id}/messages?limit=50
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	msgs, err := h.messages.ListRecent(r.Context(), projectID, queryInt(r, "limit", 50, 200))
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	if msgs == nil {
		msgs = []models.ConversationMessage{}
	}
	httputil.RespondJSON(w, http.StatusOK, msgs)
}

// ListHighlights returns the project's stored highlights
// GET /api/projects/{id}/highlights
func (h *ChatHandler) ListHighlights(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	hs, err := h.highlights.List(r.Context(), projectID)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}
	if hs == nil {
		hs = []models.Highlight{}
	}
	httputil.RespondJSON(w, http.StatusOK, hs)
}

func (h *ChatHandler) ownedProject(w http.ResponseWriter, r *http.Request) (string, bool) {
	projectID, ok := PathParam(w, r, "id", "Project ID")
	if !ok || !parseUUID(w, projectID, "Project ID") {
		return "", false
	}
	if err := h.authorizer.CanAccessProject(r.Context(), httputil.GetUserID(r), projectID); err != nil {
		handleError(w, err, h.logger)
		return "", false
	}
	return projectID, true
}
