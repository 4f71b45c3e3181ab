package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"
)

// ToolCall represents a single tool invocation request.
type ToolCall struct {
	ID    string                 `json:"id"`    // tool_use_id from LLM
	Name  string                 `json:"name"`  // tool name
	Input map[string]interface{} `json:"input"` // tool parameters
}

// ToolResult represents the result of a tool execution.
type ToolResult struct {
	ID      string      `json:"id"`       // tool_use_id (matches ToolCall.ID)
	Name    string      `json:"name"`     // tool name (matches ToolCall.Name)
	Result  interface{} `json:"result"`   // execution result (nil if error)
	Error   error       `json:"error"`    // execution error (nil if success)
	IsError bool        `json:"is_error"` // whether execution failed
}

// Content renders the result as the text sent back to the model.
func (r ToolResult) Content() string {
	if r.IsError {
		if r.Error == nil {
			return "tool failed"
		}
		return r.Error.Error()
	}
	switch v := r.Result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// ToolRegistry manages tool executors and handles tool execution.
// Names without an executor go to the fallback caller when one is set.
// It is thread-safe and can be used concurrently.
type ToolRegistry struct {
	mu        sync.RWMutex
	executors map[string]ToolExecutor
	fallback  ExternalCaller
	config    *ToolConfig
}

// NewToolRegistry creates a new tool registry.
func NewToolRegistry(config *ToolConfig) *ToolRegistry {
	if config == nil {
		config = DefaultToolConfig()
	}
	return &ToolRegistry{
		executors: make(map[string]ToolExecutor),
		config:    config,
	}
}

// Register adds a tool executor to the registry.
// If a tool with the same name already exists, it will be replaced.
func (r *ToolRegistry) Register(name string, executor ToolExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[name] = executor
}

// SetFallback routes unregistered names to caller.
func (r *ToolRegistry) SetFallback(caller ExternalCaller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = caller
}

// Get retrieves a tool executor by name.
// Returns nil if the tool is not registered.
func (r *ToolRegistry) Get(name string) ToolExecutor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.executors[name]
}

// Execute runs a single tool under the configured timeout.
// Failures, including timeouts and unknown tools, come back as error results.
func (r *ToolRegistry) Execute(ctx context.Context, call ToolCall) ToolResult {
	r.mu.RLock()
	executor := r.executors[call.Name]
	fallback := r.fallback
	r.mu.RUnlock()

	if executor == nil && fallback == nil {
		return errorResult(call, fmt.Errorf("tool not found: %s", call.Name))
	}

	if r.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.CallTimeout)
		defer cancel()
	}

	var result interface{}
	var err error
	if executor != nil {
		result, err = executor.Execute(ctx, call.Input)
	} else {
		res := fallback.CallTool(ctx, call.Name, call.Input)
		if res.IsError {
			err = errors.New(res.Content)
		} else {
			result = res.Content
		}
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errorResult(call, fmt.Errorf("tool %s timed out after %s", call.Name, r.config.CallTimeout))
	}
	if err != nil {
		return errorResult(call, err)
	}

	if s, ok := result.(string); ok {
		result = truncate(s, r.config.MaxResultSize)
	}
	return ToolResult{
		ID:     call.ID,
		Name:   call.Name,
		Result: result,
	}
}

// ExecuteParallel runs multiple tools concurrently and returns results in the same order.
// Context cancellation will stop all ongoing executions.
func (r *ToolRegistry) ExecuteParallel(ctx context.Context, calls []ToolCall) []ToolResult {
	if len(calls) == 0 {
		return []ToolResult{}
	}

	results := make([]ToolResult, len(calls))
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(index int, toolCall ToolCall) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[index] = errorResult(toolCall, ctx.Err())
				return
			default:
			}

			results[index] = r.Execute(ctx, toolCall)
		}(i, call)
	}

	wg.Wait()

	return results
}

func errorResult(call ToolCall, err error) ToolResult {
	return ToolResult{
		ID:      call.ID,
		Name:    call.Name,
		Error:   err,
		IsError: true,
	}
}

// truncate cuts s to max runes, marking the cut.
func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "\n[truncated]"
}
