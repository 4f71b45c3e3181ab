package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"
	"margin/internal/config"
	"margin/internal/domain/models"
	"margin/internal/domain/services/llm"
	"margin/internal/service/llm/tools"
)

// NameSeparator joins a server's name to its tool's name
const NameSeparator = "__"

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

type server struct {
	cfg     models.ToolServerConfig
	session Session
}

type route struct {
	server *server
	tool   string // name as the server knows it
}

// Pool holds one user's connected tool servers and their namespaced tools.
// A Pool is immutable once built; it is replaced wholesale on config changes.
type Pool struct {
	ownerID string
	servers []*server
	defs    []llm.ToolDefinition
	routes  map[string]route
	logger  *slog.Logger

	closeOnce sync.Once
}

// BuildPool connects to every enabled server concurrently. Servers that
// fail to connect or list tools are logged and skipped.
func BuildPool(ctx context.Context, ownerID string, cfgs []models.ToolServerConfig, connector Connector, logger *slog.Logger) *Pool {
	connected := make([]*server, len(cfgs))
	listed := make([][]mcp.Tool, len(cfgs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		g.Go(func() error {
			session, _, err := connector.Connect(gctx, cfg)
			if err != nil {
				logger.Warn("tool server unavailable", "owner", ownerID, "server", cfg.Name, "error", err)
				return nil
			}
			list, err := session.ListTools(gctx)
			if err != nil {
				logger.Warn("tool server list failed", "owner", ownerID, "server", cfg.Name, "error", err)
				_ = session.Close()
				return nil
			}
			connected[i] = &server{cfg: cfg, session: session}
			listed[i] = list
			return nil
		})
	}
	_ = g.Wait()

	p := &Pool{
		ownerID: ownerID,
		routes:  make(map[string]route),
		logger:  logger,
	}
	for i, srv := range connected {
		if srv == nil {
			continue
		}
		p.servers = append(p.servers, srv)
		for _, t := range listed[i] {
			schema, err := inputSchema(t)
			if err != nil {
				logger.Warn("skipping tool with bad schema", "server", srv.cfg.Name, "tool", t.Name, "error", err)
				continue
			}
			name := p.uniqueName(namespacedName(srv.cfg.Name, t.Name))
			p.routes[name] = route{server: srv, tool: t.Name}
			p.defs = append(p.defs, llm.ToolDefinition{
				Name:        name,
				Description: t.Description,
				InputSchema: schema,
			})
		}
	}

	logger.Debug("tool pool built", "owner", ownerID, "servers", len(p.servers), "tools", len(p.defs))
	return p
}

// GetTools returns the namespaced tool definitions offered to the model
func (p *Pool) GetTools() []llm.ToolDefinition {
	if p == nil {
		return nil
	}
	out := make([]llm.ToolDefinition, len(p.defs))
	copy(out, p.defs)
	return out
}

// IsMcpTool reports whether name is served by this pool
func (p *Pool) IsMcpTool(name string) bool {
	if p == nil {
		return false
	}
	_, ok := p.routes[name]
	return ok
}

// ServerID returns the id of the server hosting name, or "".
func (p *Pool) ServerID(name string) string {
	if r, ok := p.lookup(name); ok {
		return r.server.cfg.ID
	}
	return ""
}

// ServerName returns the display name of the server hosting name, or "".
func (p *Pool) ServerName(name string) string {
	if r, ok := p.lookup(name); ok {
		return r.server.cfg.Name
	}
	return ""
}

// CallTool invokes a namespaced tool. Transport and server failures come
// back as error results so the model can see them.
func (p *Pool) CallTool(ctx context.Context, name string, args map[string]interface{}) tools.CallResult {
	r, ok := p.lookup(name)
	if !ok {
		return tools.CallResult{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	res, err := r.server.session.CallTool(ctx, r.tool, args)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		p.logger.Warn("tool call failed", "server", r.server.cfg.Name, "tool", r.tool, "error", err)
		return tools.CallResult{Content: fmt.Sprintf("tool server %s: %v", r.server.cfg.Name, err), IsError: true}
	}
	return tools.CallResult{Content: resultText(res), IsError: res.IsError}
}

// Close disconnects every server. Safe to call more than once.
func (p *Pool) Close() {
	if p == nil {
		return
	}
	p.closeOnce.Do(func() {
		for _, srv := range p.servers {
			if err := srv.session.Close(); err != nil {
				p.logger.Debug("tool server close failed", "server", srv.cfg.Name, "error", err)
			}
		}
	})
}

func (p *Pool) lookup(name string) (route, bool) {
	if p == nil {
		return route{}, false
	}
	r, ok := p.routes[name]
	return r, ok
}

// uniqueName appends _2, _3, ... until name is unused, staying within the length cap.
func (p *Pool) uniqueName(name string) string {
	if _, taken := p.routes[name]; !taken {
		return name
	}
	for n := 2; ; n++ {
		suffix := "_" + strconv.Itoa(n)
		base := name
		if len(base)+len(suffix) > config.MaxToolNameLength {
			base = base[:config.MaxToolNameLength-len(suffix)]
		}
		if _, taken := p.routes[base+suffix]; !taken {
			return base + suffix
		}
	}
}

// namespacedName builds "<server>__<tool>" restricted to [a-zA-Z0-9_-].
func namespacedName(serverName, toolName string) string {
	name := sanitize(serverName) + NameSeparator + sanitize(toolName)
	if len(name) > config.MaxToolNameLength {
		name = name[:config.MaxToolNameLength]
	}
	return name
}

func sanitize(s string) string {
	s = unsafeNameChars.ReplaceAllString(s, "_")
	if s == "" {
		return "_"
	}
	return s
}

// inputSchema converts a tool's declared schema to a generic object schema
func inputSchema(t mcp.Tool) (map[string]interface{}, error) {
	raw := []byte(t.RawInputSchema)
	if len(raw) == 0 {
		var err error
		raw, err = json.Marshal(t.InputSchema)
		if err != nil {
			return nil, err
		}
	}

	var schema map[string]interface{}
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, err
	}
	if schema == nil {
		schema = map[string]interface{}{}
	}
	if typ, ok := schema["type"]; ok && typ != "object" {
		return nil, fmt.Errorf("input schema type is %v, want object", typ)
	}
	schema["type"] = "object"
	if _, ok := schema["properties"]; !ok {
		schema["properties"] = map[string]interface{}{}
	}
	return schema, nil
}
