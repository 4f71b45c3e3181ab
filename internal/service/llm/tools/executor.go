package tools

import "context"

// ToolExecutor defines the interface for executing a tool.
// Implementations must be thread-safe and respect context cancellation.
type ToolExecutor interface {
	// Execute runs the tool with the given input parameters.
	// The returned interface{} must be JSON-serializable (maps, slices, primitives).
	Execute(ctx context.Context, input map[string]interface{}) (interface{}, error)
}

// ExternalCaller proxies calls for tool names no local executor handles.
// Failures are returned as results with IsError set, never as Go errors.
type ExternalCaller interface {
	CallTool(ctx context.Context, name string, args map[string]interface{}) CallResult
}

// CallResult is the outcome of an external tool call.
type CallResult struct {
	Content string
	IsError bool
}
