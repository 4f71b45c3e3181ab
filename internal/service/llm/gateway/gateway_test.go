package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"margin/internal/config"
	"margin/internal/domain/models"
	"margin/internal/repository/memory"
)

type fakeSession struct {
	tools  []mcp.Tool
	calls  []string
	closed atomic.Bool
	mu     sync.Mutex
	fail   error
}

func (s *fakeSession) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return s.tools, nil
}

func (s *fakeSession) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	q, _ := args["q"].(string)
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(name + ":" + q)}}, nil
}

func (s *fakeSession) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeConnector struct {
	mu       sync.Mutex
	sessions map[string]*fakeSession // by server URL
	connects atomic.Int32
	delay    time.Duration
}

func (c *fakeConnector) Connect(ctx context.Context, cfg models.ToolServerConfig) (Session, *mcp.Implementation, error) {
	c.connects.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[cfg.URL]
	if !ok {
		return nil, nil, errors.New("connection refused")
	}
	return s, &mcp.Implementation{Name: "fake-" + cfg.Name, Version: "1.0.0"}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func searchTool(name string) mcp.Tool {
	return mcp.NewTool(name,
		mcp.WithDescription("search the web"),
		mcp.WithString("q", mcp.Required()),
	)
}

func TestNamespacedName(t *testing.T) {
	tests := []struct {
		server, tool, want string
	}{
		{"search", "find", "search__find"},
		{"My Search!", "find.docs", "My_Search___find_docs"},
		{"", "x", "___x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, namespacedName(tt.server, tt.tool))
	}

	long := namespacedName(strings.Repeat("s", 50), strings.Repeat("t", 50))
	assert.Len(t, long, config.MaxToolNameLength)
}

func TestBuildPoolNamespacesAndRoutes(t *testing.T) {
	web := &fakeSession{tools: []mcp.Tool{searchTool("search"), searchTool("fetch")}}
	docs := &fakeSession{tools: []mcp.Tool{searchTool("search")}}
	conn := &fakeConnector{sessions: map[string]*fakeSession{
		"https://web.example": web,
		"https://docs.example": docs,
	}}

	cfgs := []models.ToolServerConfig{
		{ID: "s1", Name: "web", URL: "https://web.example", Enabled: true},
		{ID: "s2", Name: "docs", URL: "https://docs.example", Enabled: true},
		{ID: "s3", Name: "down", URL: "https://down.example", Enabled: true},
		{ID: "s4", Name: "off", URL: "https://web.example", Enabled: false},
	}
	p := BuildPool(context.Background(), "u1", cfgs, conn, testLogger())
	defer p.Close()

	var names []string
	for _, d := range p.GetTools() {
		names = append(names, d.Name)
		assert.Equal(t, "object", d.InputSchema["type"])
	}
	assert.Equal(t, []string{"web__search", "web__fetch", "docs__search"}, names)

	assert.True(t, p.IsMcpTool("docs__search"))
	assert.False(t, p.IsMcpTool("add_highlight"))
	assert.Equal(t, "s2", p.ServerID("docs__search"))
	assert.Equal(t, "docs", p.ServerName("docs__search"))

	res := p.CallTool(context.Background(), "docs__search", map[string]interface{}{"q": "glaciers"})
	assert.False(t, res.IsError)
	assert.Equal(t, "search:glaciers", res.Content)
	assert.Equal(t, []string{"search"}, docs.calls)
	assert.Empty(t, web.calls)

	res = p.CallTool(context.Background(), "nope__search", nil)
	assert.True(t, res.IsError)
}

func TestBuildPoolDeduplicatesSanitizedNames(t *testing.T) {
	a := &fakeSession{tools: []mcp.Tool{searchTool("x")}}
	b := &fakeSession{tools: []mcp.Tool{searchTool("x")}}
	conn := &fakeConnector{sessions: map[string]*fakeSession{"https://a": a, "https://b": b}}

	p := BuildPool(context.Background(), "u1", []models.ToolServerConfig{
		{ID: "1", Name: "a b", URL: "https://a", Enabled: true},
		{ID: "2", Name: "a_b", URL: "https://b", Enabled: true},
	}, conn, testLogger())

	tools := p.GetTools()
	require.Len(t, tools, 2)
	assert.Equal(t, "a_b__x", tools[0].Name)
	assert.Equal(t, "a_b__x_2", tools[1].Name)
	assert.Equal(t, "2", p.ServerID("a_b__x_2"))
}

func TestCallToolTransportErrorIsResult(t *testing.T) {
	s := &fakeSession{tools: []mcp.Tool{searchTool("search")}, fail: errors.New("broken pipe")}
	conn := &fakeConnector{sessions: map[string]*fakeSession{"https://x": s}}
	p := BuildPool(context.Background(), "u1", []models.ToolServerConfig{
		{ID: "1", Name: "x", URL: "https://x", Enabled: true},
	}, conn, testLogger())

	res := p.CallTool(context.Background(), "x__search", map[string]interface{}{})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "broken pipe")
}

func TestPoolCacheSharesConcurrentBuilds(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.ToolServers().Create(ctx, &models.ToolServerConfig{
		OwnerID: "u1", Name: "web", URL: "https://web.example", Enabled: true,
	}, 0))

	conn := &fakeConnector{
		sessions: map[string]*fakeSession{"https://web.example": {tools: []mcp.Tool{searchTool("search")}}},
		delay:    20 * time.Millisecond,
	}
	cache := NewPoolCache(store.ToolServers(), conn, DefaultCacheConfig(), testLogger())
	defer cache.Close()

	var wg sync.WaitGroup
	pools := make([]*Pool, 8)
	for i := range pools {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := cache.Get(ctx, "u1")
			assert.NoError(t, err)
			pools[i] = p
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), conn.connects.Load())
	for _, p := range pools {
		assert.Same(t, pools[0], p)
	}
}

func TestPoolCacheInvalidateRebuilds(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	web := &fakeSession{tools: []mcp.Tool{searchTool("search")}}
	docs := &fakeSession{tools: []mcp.Tool{searchTool("lookup")}}
	conn := &fakeConnector{sessions: map[string]*fakeSession{
		"https://web.example":  web,
		"https://docs.example": docs,
	}}
	cache := NewPoolCache(store.ToolServers(), conn, CacheConfig{BuildTimeout: time.Second}, testLogger())
	defer cache.Close()

	require.NoError(t, store.ToolServers().Create(ctx, &models.ToolServerConfig{
		OwnerID: "u1", Name: "web", URL: "https://web.example", Enabled: true,
	}, 0))
	first, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, first.IsMcpTool("web__search"))

	require.NoError(t, store.ToolServers().Create(ctx, &models.ToolServerConfig{
		OwnerID: "u1", Name: "docs", URL: "https://docs.example", Enabled: true,
	}, 0))

	again, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Same(t, first, again, "cached until invalidated")

	cache.Invalidate("u1")
	second, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.True(t, second.IsMcpTool("docs__lookup"))

	assert.Eventually(t, web.closed.Load, time.Second, 5*time.Millisecond)
}

func TestPoolCacheEvictsIdlePools(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.ToolServers().Create(ctx, &models.ToolServerConfig{
		OwnerID: "u1", Name: "web", URL: "https://web.example", Enabled: true,
	}, 0))
	web := &fakeSession{tools: []mcp.Tool{searchTool("search")}}
	conn := &fakeConnector{sessions: map[string]*fakeSession{"https://web.example": web}}
	cache := NewPoolCache(store.ToolServers(), conn, CacheConfig{BuildTimeout: time.Second, IdleTTL: 50 * time.Millisecond}, testLogger())
	defer cache.Close()

	first, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Eventually(t, web.closed.Load, 2*time.Second, 5*time.Millisecond)

	second, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, int32(2), conn.connects.Load())
}

func TestPoolCacheEvictsLeastRecentOwner(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	for _, owner := range []string{"u1", "u2"} {
		require.NoError(t, store.ToolServers().Create(ctx, &models.ToolServerConfig{
			OwnerID: owner, Name: "web", URL: "https://" + owner + ".example", Enabled: true,
		}, 0))
	}
	one := &fakeSession{tools: []mcp.Tool{searchTool("search")}}
	two := &fakeSession{tools: []mcp.Tool{searchTool("search")}}
	conn := &fakeConnector{sessions: map[string]*fakeSession{
		"https://u1.example": one,
		"https://u2.example": two,
	}}
	cache := NewPoolCache(store.ToolServers(), conn, CacheConfig{BuildTimeout: time.Second, MaxOwners: 1}, testLogger())
	defer cache.Close()

	first, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	_, err = cache.Get(ctx, "u2")
	require.NoError(t, err)

	assert.Eventually(t, one.closed.Load, time.Second, 5*time.Millisecond)
	assert.False(t, two.closed.Load())

	again, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.NotSame(t, first, again)
}

func TestPoolCacheCloseClosesPools(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.ToolServers().Create(ctx, &models.ToolServerConfig{
		OwnerID: "u1", Name: "web", URL: "https://web.example", Enabled: true,
	}, 0))
	web := &fakeSession{tools: []mcp.Tool{searchTool("search")}}
	conn := &fakeConnector{sessions: map[string]*fakeSession{"https://web.example": web}}
	cache := NewPoolCache(store.ToolServers(), conn, DefaultCacheConfig(), testLogger())

	_, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	cache.Close()
	assert.True(t, web.closed.Load())
}

func TestTester(t *testing.T) {
	conn := &fakeConnector{sessions: map[string]*fakeSession{
		"https://ok.example": {tools: []mcp.Tool{searchTool("search"), searchTool("fetch")}},
	}}
	tester := NewTester(conn, time.Second)

	res, err := tester.TestServer(context.Background(), models.ToolServerConfig{Name: "ok", URL: "https://ok.example"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "fake-ok", res.ServerName)
	assert.Equal(t, "1.0.0", res.Version)
	assert.Equal(t, []string{"search", "fetch"}, res.Tools)

	res, err = tester.TestServer(context.Background(), models.ToolServerConfig{Name: "down", URL: "https://down.example"})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "connection refused")
}
