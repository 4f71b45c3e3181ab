// Package gateway proxies model tool calls to users' MCP tool servers.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"margin/internal/domain/models"
)

// Session is an initialized connection to one tool server.
type Session interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
	Close() error
}

// Connector opens sessions. The default speaks MCP over streamable HTTP.
type Connector interface {
	Connect(ctx context.Context, cfg models.ToolServerConfig) (Session, *mcp.Implementation, error)
}

// MCPConnector connects with mcp-go's streamable HTTP client.
type MCPConnector struct {
	ClientName    string
	ClientVersion string
}

// NewMCPConnector creates a connector identifying as name/version
func NewMCPConnector(name, version string) *MCPConnector {
	return &MCPConnector{ClientName: name, ClientVersion: version}
}

// Connect starts the transport and performs the initialize handshake
func (c *MCPConnector) Connect(ctx context.Context, cfg models.ToolServerConfig) (Session, *mcp.Implementation, error) {
	cli, err := client.NewStreamableHttpClient(cfg.URL, transport.WithHTTPHeaders(cfg.Headers))
	if err != nil {
		return nil, nil, fmt.Errorf("create client for %s: %w", cfg.Name, err)
	}

	if err := cli.Start(ctx); err != nil {
		_ = cli.Close()
		return nil, nil, fmt.Errorf("start %s: %w", cfg.Name, err)
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: c.ClientName, Version: c.ClientVersion}
	req.Params.Capabilities = mcp.ClientCapabilities{}

	res, err := cli.Initialize(ctx, req)
	if err != nil {
		_ = cli.Close()
		return nil, nil, fmt.Errorf("initialize %s: %w", cfg.Name, err)
	}

	return &mcpSession{cli: cli}, &res.ServerInfo, nil
}

type mcpSession struct {
	cli *client.Client
}

// ListTools follows pagination cursors to the end
func (s *mcpSession) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	var out []mcp.Tool
	req := mcp.ListToolsRequest{}
	for {
		res, err := s.cli.ListTools(ctx, req)
		if err != nil {
			return nil, err
		}
		out = append(out, res.Tools...)
		if res.NextCursor == "" {
			return out, nil
		}
		req.Params.Cursor = res.NextCursor
	}
}

func (s *mcpSession) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return s.cli.CallTool(ctx, req)
}

func (s *mcpSession) Close() error {
	return s.cli.Close()
}

// resultText flattens a tool result's content blocks into text
func resultText(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			parts = append(parts, tc.Text)
			continue
		}
		parts = append(parts, "[non-text content omitted]")
	}
	return strings.Join(parts, "\n")
}
