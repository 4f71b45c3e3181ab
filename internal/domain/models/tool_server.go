package models

import "time"

// ToolServerConfig is an owner's external tool server (MCP over streamable HTTP).
type ToolServerConfig struct {
	ID        string            `json:"id"`
	OwnerID   string            `json:"-"`
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers"`
	Enabled   bool              `json:"enabled"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// CreateToolServerRequest is the create payload.
type CreateToolServerRequest struct {
	OwnerID string            `json:"-"`
	Name    string            `json:"name"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Enabled *bool             `json:"enabled"` // defaults to true
}

// UpdateToolServerRequest is a partial update; nil fields are unchanged.
type UpdateToolServerRequest struct {
	Name    *string            `json:"name"`
	URL     *string            `json:"url"`
	Headers *map[string]string `json:"headers"`
	Enabled *bool              `json:"enabled"`
}

// ToolServerTestResult reports a connection test.
type ToolServerTestResult struct {
	OK         bool     `json:"ok"`
	ServerName string   `json:"serverName,omitempty"`
	Version    string   `json:"version,omitempty"`
	Tools      []string `json:"tools"`
	Error      string   `json:"error,omitempty"`
	LatencyMS  int64    `json:"latencyMs"`
}
