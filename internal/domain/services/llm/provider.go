package llm

import (
	"context"
	"encoding/json"
)

// LLMProvider defines the interface that all LLM providers must implement.
// Providers stream one model response per call; the orchestrator owns the
// tool-use loop across calls.
type LLMProvider interface {
	// StreamResponse starts a streaming generation. The channel is closed after
	// a final event carrying Metadata or Error. Cancelling ctx stops the stream.
	StreamResponse(ctx context.Context, req *GenerateRequest) (<-chan StreamEvent, error)

	// Name returns the provider name (e.g., "anthropic", "lorem")
	Name() string

	// SupportsModel returns true if the provider supports the given model.
	SupportsModel(model string) bool
}

// Content block types
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// Stop reasons
const (
	StopEndTurn   = "end_turn"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
)

// GenerateRequest contains the parameters for one model call.
type GenerateRequest struct {
	Model     string
	System    string
	Messages  []Message
	Tools     []ToolDefinition
	MaxTokens int
}

// Message represents a single message in the conversation.
type Message struct {
	// Role is either "user" or "assistant"
	Role    string
	Content []ContentBlock
}

// ContentBlock is a provider-neutral content block.
type ContentBlock struct {
	Type string

	// text
	Text string

	// tool_use and tool_result
	ToolUseID string
	ToolName  string
	Input     json.RawMessage

	// tool_result
	Content string
	IsError bool
}

// ToolDefinition describes a tool offered to the model.
type ToolDefinition struct {
	Name        string
	Description string
	// InputSchema is a JSON Schema object
	InputSchema map[string]interface{}
}

// ToolUse is a completed tool invocation parsed from the stream.
type ToolUse struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// StreamMetadata is sent once, at the end of a successful stream.
type StreamMetadata struct {
	Model        string
	InputTokens  int
	OutputTokens int
	StopReason   string
}

// StreamEvent is one item from a provider stream. Exactly one field is set.
type StreamEvent struct {
	TextDelta string
	ToolUse   *ToolUse
	Metadata  *StreamMetadata
	Error     error
}

// TextMessage builds a single text block message.
func TextMessage(role, text string) Message {
	return Message{Role: role, Content: []ContentBlock{{Type: BlockText, Text: text}}}
}

// ActivePageTag wraps the active page's text in system prompts.
const ActivePageTag = "active_page"
