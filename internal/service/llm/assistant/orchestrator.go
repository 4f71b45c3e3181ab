// Package assistant runs one assistant turn: context building, the
// streaming tool loop, persistence and usage accounting.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"margin/internal/capabilities"
	"margin/internal/config"
	"margin/internal/domain/models"
	"margin/internal/domain/repositories"
	domainllm "margin/internal/domain/services/llm"
	"margin/internal/markdown"
	"margin/internal/metrics"
	"margin/internal/service/llm/gateway"
	"margin/internal/service/llm/tools"
)

// EventSink receives a turn's events in stream order.
type EventSink interface {
	Send(event models.StreamEvent) error
}

// ModelRouter resolves a model id to its provider
type ModelRouter interface {
	ForModel(model string) (domainllm.LLMProvider, *capabilities.ModelCapabilities, error)
}

// PoolSource returns an owner's external tool pool
type PoolSource interface {
	Get(ctx context.Context, ownerID string) (*gateway.Pool, error)
}

// UsageRecorder appends to the usage ledger
type UsageRecorder interface {
	Record(ctx context.Context, entry *models.UsageEntry) error
}

// TurnRequest is one chat submission.
type TurnRequest struct {
	UserID    string
	ProjectID string
	Message   string
	Document  models.Document
	// Model defaults to the configured default model
	Model string
	// ToolAccess grants citation and external tools
	ToolAccess bool
}

// Config bounds a turn.
type Config struct {
	DefaultModel    string
	MaxOutputTokens int
	ModelTimeout    time.Duration
	ToolCallTimeout time.Duration
	MaxToolRounds   int
	HistoryWindow   int
	HighlightCap    int
	WorkSamples     int
	WorkSampleLen   int
}

// ConfigFrom takes turn bounds from service config and limits
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		DefaultModel:    cfg.DefaultModel,
		MaxOutputTokens: cfg.MaxOutputTokens,
		ModelTimeout:    cfg.ModelTimeout,
		ToolCallTimeout: cfg.ToolCallTimeout,
		MaxToolRounds:   config.MaxToolRounds,
		HistoryWindow:   config.HistoryWindow,
		HighlightCap:    config.HighlightCap,
		WorkSamples:     config.WorkSampleCount,
		WorkSampleLen:   config.WorkSampleLength,
	}
}

// Orchestrator runs assistant turns. It is safe for concurrent use; all
// per-turn state lives in Run.
type Orchestrator struct {
	models     ModelRouter
	messages   repositories.MessageRepository
	highlights repositories.HighlightRepository
	projects   repositories.ProjectRepository
	usage      UsageRecorder
	pools      PoolSource
	tx         repositories.TransactionManager
	html       *markdown.HTMLConverter
	metrics    *metrics.Metrics
	config     Config
	logger     *slog.Logger
	now        func() time.Time
}

// Deps groups the orchestrator's collaborators.
type Deps struct {
	Models     ModelRouter
	Messages   repositories.MessageRepository
	Highlights repositories.HighlightRepository
	Projects   repositories.ProjectRepository
	Usage      UsageRecorder
	Pools      PoolSource
	Tx         repositories.TransactionManager
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(deps Deps, cfg Config) *Orchestrator {
	return &Orchestrator{
		models:     deps.Models,
		messages:   deps.Messages,
		highlights: deps.Highlights,
		projects:   deps.Projects,
		usage:      deps.Usage,
		pools:      deps.Pools,
		tx:         deps.Tx,
		html:       markdown.NewHTMLConverter(),
		metrics:    deps.Metrics,
		config:     cfg,
		logger:     deps.Logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// turn is the mutable state of one Run
type turn struct {
	req        *TurnRequest
	sink       EventSink
	provider   domainllm.LLMProvider
	model      string
	pages      map[models.PageSlot]string
	pool       *gateway.Pool
	registry   *tools.ToolRegistry
	text       strings.Builder
	highlights []models.Highlight
	sources    []models.Source
	inputTok   int
	outputTok  int
	rounds     int
	truncated  bool
}

// roundResult is what one model call produced
type roundResult struct {
	blocks     []domainllm.ContentBlock // assistant content, in stream order
	results    map[string]tools.ToolResult
	external   []tools.ToolCall
	uses       []*domainllm.ToolUse
	stopReason string
}

// Run executes one turn, emitting events to sink. The user message is
// stored first; on success the assistant message, new highlights and one
// usage entry are stored together before done is emitted. Model failures
// emit an error event and store nothing further.
func (o *Orchestrator) Run(ctx context.Context, req *TurnRequest, sink EventSink) (*models.ConversationMessage, error) {
	start := time.Now()
	msg, outcome, err := o.run(ctx, req, sink)
	o.metrics.TurnFinished(outcome, time.Since(start))

	switch outcome {
	case metrics.OutcomeCancelled:
		o.logger.Info("turn cancelled", "user_id", req.UserID, "project_id", req.ProjectID)
		_ = sink.Send(models.ErrorEvent{Error: "cancelled"})
	case metrics.OutcomeError:
		o.logger.Error("turn failed", "user_id", req.UserID, "project_id", req.ProjectID, "error", err)
		_ = sink.Send(models.ErrorEvent{Error: userFacing(err)})
	}
	return msg, err
}

func (o *Orchestrator) run(ctx context.Context, req *TurnRequest, sink EventSink) (*models.ConversationMessage, string, error) {
	model := req.Model
	if model == "" {
		model = o.config.DefaultModel
	}
	provider, caps, err := o.models.ForModel(model)
	if err != nil {
		return nil, metrics.OutcomeError, fmt.Errorf("resolve model: %w", err)
	}

	pages, err := o.normalize(&req.Document)
	if err != nil {
		return nil, metrics.OutcomeError, err
	}

	userMsg := &models.ConversationMessage{
		ProjectID: req.ProjectID,
		UserID:    req.UserID,
		Role:      models.RoleUser,
		Content:   req.Message,
		CreatedAt: o.now(),
	}
	if err := o.messages.Append(ctx, userMsg); err != nil {
		return nil, outcomeOf(ctx, err), fmt.Errorf("store user message: %w", err)
	}

	history, err := o.messages.ListRecent(ctx, req.ProjectID, o.config.HistoryWindow)
	if err != nil {
		return nil, outcomeOf(ctx, err), fmt.Errorf("load history: %w", err)
	}

	t := &turn{
		req:      req,
		sink:     sink,
		provider: provider,
		model:    model,
		pages:    pages,
	}

	toolAccess := req.ToolAccess && caps.SupportsTools
	if toolAccess && o.pools != nil {
		pool, err := o.pools.Get(ctx, req.UserID)
		if err != nil {
			o.logger.Warn("external tools unavailable", "user_id", req.UserID, "error", err)
		} else {
			t.pool = pool
		}
	}

	builder := tools.NewToolRegistryBuilder(&tools.ToolConfig{
		CallTimeout:   o.config.ToolCallTimeout,
		MaxResultSize: tools.DefaultToolConfig().MaxResultSize,
	})
	if t.pool != nil {
		builder = builder.WithGateway(t.pool)
	}
	t.registry = builder.Build()

	genReq := &domainllm.GenerateRequest{
		Model: model,
		System: buildSystemPrompt(promptInput{
			pages:      pages,
			active:     req.Document.ActiveTab,
			samples:    o.samples(ctx, req),
			toolAccess: toolAccess,
		}),
		Messages:  historyMessages(history),
		Tools:     toolDefinitions(caps.SupportsTools, toolAccess, t.pool.GetTools()),
		MaxTokens: o.maxTokens(caps),
	}

	for {
		t.rounds++
		res, err := o.round(ctx, t, genReq)
		if err != nil {
			return nil, outcomeOf(ctx, err), err
		}
		genReq.Messages = append(genReq.Messages, domainllm.Message{Role: string(models.RoleAssistant), Content: res.blocks})

		if res.stopReason != domainllm.StopToolUse || len(res.uses) == 0 {
			break
		}
		if t.rounds >= o.config.MaxToolRounds {
			t.truncated = true
			o.logger.Warn("tool round cap reached, finishing turn",
				"user_id", req.UserID,
				"project_id", req.ProjectID,
				"rounds", t.rounds,
			)
			for _, call := range res.external {
				if err := o.toolStatus(t, call.Name, models.ToolStatusError); err != nil {
					return nil, outcomeOf(ctx, err), err
				}
			}
			break
		}

		if err := o.runExternal(ctx, t, res); err != nil {
			return nil, outcomeOf(ctx, err), err
		}
		genReq.Messages = append(genReq.Messages, toolResultMessage(res))
	}

	msg, err := o.persist(ctx, t)
	if err != nil {
		return nil, outcomeOf(ctx, err), err
	}
	if err := sink.Send(models.DoneEvent{MessageID: msg.ID}); err != nil {
		o.logger.Debug("done event not delivered", "message_id", msg.ID, "error", err)
	}

	o.logger.Info("turn complete",
		"user_id", req.UserID,
		"project_id", req.ProjectID,
		"message_id", msg.ID,
		"model", model,
		"rounds", t.rounds,
		"highlights", len(t.highlights),
		"sources", len(t.sources),
	)
	if t.truncated {
		return msg, metrics.OutcomeTruncated, nil
	}
	return msg, metrics.OutcomeDone, nil
}

// round streams one model response, dispatching local tools as they arrive
func (o *Orchestrator) round(ctx context.Context, t *turn, genReq *domainllm.GenerateRequest) (*roundResult, error) {
	roundCtx := ctx
	if o.config.ModelTimeout > 0 {
		var cancel context.CancelFunc
		roundCtx, cancel = context.WithTimeout(ctx, o.config.ModelTimeout)
		defer cancel()
	}

	stream, err := t.provider.StreamResponse(roundCtx, genReq)
	if err != nil {
		return nil, &modelError{err: err}
	}

	res := &roundResult{results: make(map[string]tools.ToolResult)}
	var roundText strings.Builder
	var meta *domainllm.StreamMetadata

	for ev := range stream {
		switch {
		case ev.Error != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &modelError{err: ev.Error}

		case ev.TextDelta != "":
			roundText.WriteString(ev.TextDelta)
			t.text.WriteString(ev.TextDelta)
			if err := t.sink.Send(models.TextEvent{Chunk: ev.TextDelta}); err != nil {
				return nil, err
			}

		case ev.ToolUse != nil:
			if err := o.dispatch(t, res, ev.ToolUse); err != nil {
				return nil, err
			}

		case ev.Metadata != nil:
			meta = ev.Metadata
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if meta == nil {
		if roundCtx.Err() != nil {
			return nil, &modelError{err: fmt.Errorf("model timed out after %s", o.config.ModelTimeout)}
		}
		return nil, &modelError{err: errors.New("stream ended without metadata")}
	}

	t.inputTok += meta.InputTokens
	t.outputTok += meta.OutputTokens
	res.stopReason = meta.StopReason

	blocks := make([]domainllm.ContentBlock, 0, len(res.uses)+1)
	if roundText.Len() > 0 {
		blocks = append(blocks, domainllm.ContentBlock{Type: domainllm.BlockText, Text: roundText.String()})
	}
	for _, use := range res.uses {
		blocks = append(blocks, domainllm.ContentBlock{
			Type:      domainllm.BlockToolUse,
			ToolUseID: use.ID,
			ToolName:  use.Name,
			Input:     use.Input,
		})
	}
	res.blocks = blocks
	return res, nil
}

// dispatch handles a completed tool_use block by kind. Local tools resolve
// immediately; external calls are queued until the stream ends.
func (o *Orchestrator) dispatch(t *turn, res *roundResult, use *domainllm.ToolUse) error {
	res.uses = append(res.uses, use)
	kind := tools.KindOf(use.Name)

	switch kind {
	case tools.KindHighlight:
		h, err := o.highlight(t, use)
		if err != nil {
			o.metrics.ToolCall(kind.String(), models.ToolStatusError)
			o.logger.Debug("highlight rejected", "error", err)
			res.results[use.ID] = localResult(use, nil, err)
			return nil
		}
		t.highlights = append(t.highlights, *h)
		o.metrics.ToolCall(kind.String(), models.ToolStatusDone)
		res.results[use.ID] = localResult(use, "Highlight added.", nil)
		return t.sink.Send(models.NewHighlightEvent(*h))

	case tools.KindCitation:
		src, err := tools.ParseCitation(use.Input)
		if err != nil {
			o.metrics.ToolCall(kind.String(), models.ToolStatusError)
			res.results[use.ID] = localResult(use, nil, err)
			return nil
		}
		o.metrics.ToolCall(kind.String(), models.ToolStatusDone)
		res.results[use.ID] = localResult(use, "Source recorded.", nil)
		if t.addSource(*src) {
			return t.sink.Send(models.SourceEvent{URL: src.URL, Title: src.Title})
		}
		return nil

	default:
		if !t.pool.IsMcpTool(use.Name) {
			o.metrics.ToolCall(kind.String(), models.ToolStatusError)
			res.results[use.ID] = localResult(use, nil, fmt.Errorf("tool not available: %s", use.Name))
			return nil
		}
		input, err := tools.DecodeInput(use.Input)
		if err != nil {
			o.metrics.ToolCall(kind.String(), models.ToolStatusError)
			res.results[use.ID] = localResult(use, nil, err)
			return nil
		}
		res.external = append(res.external, tools.ToolCall{ID: use.ID, Name: use.Name, Input: input})
		return o.toolStatus(t, use.Name, models.ToolStatusRunning)
	}
}

// highlight validates add_highlight input against the submitted pages
func (o *Orchestrator) highlight(t *turn, use *domainllm.ToolUse) (*models.Highlight, error) {
	in, err := tools.ParseHighlight(use.Input)
	if err != nil {
		return nil, err
	}
	if !t.containsText(in.MatchText) {
		return nil, fmt.Errorf("matchText does not appear verbatim in the writer's pages: %q", in.MatchText)
	}
	return &models.Highlight{
		ID:            uuid.NewString(),
		Type:          in.Type,
		MatchText:     in.MatchText,
		Comment:       in.Comment,
		SuggestedEdit: in.SuggestedEdit,
		CreatedAt:     o.now(),
	}, nil
}

// runExternal executes a round's external calls concurrently and reports
// each one's status
func (o *Orchestrator) runExternal(ctx context.Context, t *turn, res *roundResult) error {
	if len(res.external) == 0 {
		return nil
	}
	results := t.registry.ExecuteParallel(ctx, res.external)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	for _, r := range results {
		status := models.ToolStatusDone
		if r.IsError {
			status = models.ToolStatusError
			o.logger.Warn("external tool failed",
				"tool", r.Name,
				"server_id", t.pool.ServerID(r.Name),
				"error", r.Error,
			)
		}
		o.metrics.ToolCall(tools.KindExternal.String(), status)
		res.results[r.ID] = r
		if err := o.toolStatus(t, r.Name, status); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) toolStatus(t *turn, name, status string) error {
	return t.sink.Send(models.ToolStatusEvent{
		Tool:   name,
		Server: t.pool.ServerName(name),
		Status: status,
	})
}

// persist stores the assistant message, its highlights and the usage entry
// in one transaction
func (o *Orchestrator) persist(ctx context.Context, t *turn) (*models.ConversationMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msg := &models.ConversationMessage{
		ID:         uuid.NewString(),
		ProjectID:  t.req.ProjectID,
		UserID:     t.req.UserID,
		Role:       models.RoleAssistant,
		Content:    strings.TrimSpace(t.text.String()),
		Highlights: t.highlights,
		Sources:    t.sources,
		CreatedAt:  o.now(),
	}

	err := o.tx.ExecTx(ctx, func(txCtx context.Context) error {
		if err := o.messages.Append(txCtx, msg); err != nil {
			return fmt.Errorf("store assistant message: %w", err)
		}
		if len(t.highlights) > 0 {
			if err := o.highlights.AppendCapped(txCtx, t.req.ProjectID, t.highlights, o.config.HighlightCap); err != nil {
				return fmt.Errorf("store highlights: %w", err)
			}
		}
		return o.usage.Record(txCtx, &models.UsageEntry{
			UserID:       t.req.UserID,
			ProjectID:    t.req.ProjectID,
			MessageID:    msg.ID,
			Model:        t.model,
			InputTokens:  t.inputTok,
			OutputTokens: t.outputTok,
			Rounds:       t.rounds,
			CreatedAt:    msg.CreatedAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// normalize converts every page to the plain text the model sees
func (o *Orchestrator) normalize(doc *models.Document) (map[models.PageSlot]string, error) {
	out := make(map[models.PageSlot]string, len(doc.Pages))
	for slot, content := range doc.Pages {
		if doc.Format == models.PageFormatHTML {
			text, err := o.html.FromHTML(content)
			if err != nil {
				return nil, fmt.Errorf("convert %s page: %w", slot, err)
			}
			out[slot] = text
			continue
		}
		out[slot] = markdown.Strip(content)
	}
	return out, nil
}

// samples loads earlier finished work. Failures only cost style context.
func (o *Orchestrator) samples(ctx context.Context, req *TurnRequest) []models.WorkSample {
	if o.projects == nil || o.config.WorkSamples <= 0 {
		return nil
	}
	samples, err := o.projects.ListCompletedSamples(ctx, req.UserID, req.ProjectID, o.config.WorkSamples)
	if err != nil {
		o.logger.Warn("work samples unavailable", "user_id", req.UserID, "error", err)
		return nil
	}
	for i := range samples {
		samples[i].Text = truncateRunes(samples[i].Text, o.config.WorkSampleLen)
	}
	return samples
}

func (o *Orchestrator) maxTokens(caps *capabilities.ModelCapabilities) int {
	n := o.config.MaxOutputTokens
	if caps.MaxOutput > 0 && (n <= 0 || caps.MaxOutput < n) {
		n = caps.MaxOutput
	}
	return n
}

func (t *turn) containsText(s string) bool {
	for _, text := range t.pages {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

// addSource records src once per url
func (t *turn) addSource(src models.Source) bool {
	for _, s := range t.sources {
		if s.URL == src.URL {
			return false
		}
	}
	t.sources = append(t.sources, src)
	return true
}

func localResult(use *domainllm.ToolUse, result interface{}, err error) tools.ToolResult {
	return tools.ToolResult{
		ID:      use.ID,
		Name:    use.Name,
		Result:  result,
		Error:   err,
		IsError: err != nil,
	}
}

// toolResultMessage answers every tool_use of the round, in order
func toolResultMessage(res *roundResult) domainllm.Message {
	blocks := make([]domainllm.ContentBlock, 0, len(res.uses))
	for _, use := range res.uses {
		r, ok := res.results[use.ID]
		if !ok {
			r = localResult(use, nil, errors.New("tool produced no result"))
		}
		blocks = append(blocks, domainllm.ContentBlock{
			Type:      domainllm.BlockToolResult,
			ToolUseID: use.ID,
			Content:   r.Content(),
			IsError:   r.IsError,
		})
	}
	return domainllm.Message{Role: string(models.RoleUser), Content: blocks}
}

// modelError marks failures of the model call itself
type modelError struct {
	err error
}

func (e *modelError) Error() string { return "model request failed: " + e.err.Error() }
func (e *modelError) Unwrap() error { return e.err }

func outcomeOf(ctx context.Context, err error) string {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return metrics.OutcomeCancelled
	}
	return metrics.OutcomeError
}

// userFacing hides internal detail from stream error frames
func userFacing(err error) string {
	var me *modelError
	if errors.As(err, &me) {
		return "The assistant could not respond. Please try again."
	}
	return "Something went wrong. Please try again."
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
