package tools

import "time"

// ToolConfig centralizes configuration for tool execution.
type ToolConfig struct {
	// CallTimeout bounds each tool call. A timed-out call becomes an error result.
	CallTimeout time.Duration

	// MaxResultSize truncates tool output sent back to the model (characters).
	MaxResultSize int
}

// DefaultToolConfig returns the default tool configuration.
func DefaultToolConfig() *ToolConfig {
	return &ToolConfig{
		CallTimeout:   30 * time.Second,
		MaxResultSize: 20000, // ~5k tokens
	}
}
