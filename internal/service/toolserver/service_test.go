package toolserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"margin/internal/domain"
	"margin/internal/domain/models"
	"margin/internal/domain/repositories"
	"margin/internal/repository/memory"
	"margin/internal/service/llm/gateway"
)

type stubSession struct{ tools []mcp.Tool }

func (s *stubSession) ListTools(ctx context.Context) ([]mcp.Tool, error) { return s.tools, nil }

func (s *stubSession) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{}, nil
}

func (s *stubSession) Close() error { return nil }

type stubConnector struct{}

func (stubConnector) Connect(ctx context.Context, cfg models.ToolServerConfig) (gateway.Session, *mcp.Implementation, error) {
	return &stubSession{tools: []mcp.Tool{mcp.NewTool("search")}}, &mcp.Implementation{Name: cfg.Name, Version: "0.1"}, nil
}

type countingInvalidator struct {
	mu     sync.Mutex
	owners []string
}

func (c *countingInvalidator) Invalidate(ownerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owners = append(c.owners, ownerID)
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestService(t *testing.T) (*memory.Store, *countingInvalidator, *service) {
	t.Helper()
	store := memory.NewStore()
	inv := &countingInvalidator{}
	tester := gateway.NewTester(stubConnector{}, time.Second)
	svc := NewService(store.ToolServers(), inv, tester, discardLogger()).(*service)
	return store, inv, svc
}

func create(name, url string) *models.CreateToolServerRequest {
	return &models.CreateToolServerRequest{OwnerID: "u1", Name: name, URL: url}
}

func TestCreateDefaultsAndInvalidates(t *testing.T) {
	_, inv, svc := newTestService(t)

	cfg, err := svc.Create(context.Background(), create("  search  ", "https://mcp.example/v1"))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.ID)
	assert.Equal(t, "search", cfg.Name)
	assert.True(t, cfg.Enabled)
	assert.NotNil(t, cfg.Headers)
	assert.Equal(t, []string{"u1"}, inv.owners)
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name  string
		req   *models.CreateToolServerRequest
		field string
	}{
		{"blank name", create("", "https://a.example"), "name"},
		{"long name", create(fmt.Sprintf("%065d", 0), "https://a.example"), "name"},
		{"relative url", create("a", "/mcp"), "url"},
		{"ftp url", create("a", "ftp://a.example"), "url"},
		{"bad header name", &models.CreateToolServerRequest{
			OwnerID: "u1", Name: "a", URL: "https://a.example",
			Headers: map[string]string{"Bad Header": "x"},
		}, "headers"},
		{"header value newline", &models.CreateToolServerRequest{
			OwnerID: "u1", Name: "a", URL: "https://a.example",
			Headers: map[string]string{"Authorization": "Bearer x\r\nX-Evil: 1"},
		}, "headers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, inv, svc := newTestService(t)
			_, err := svc.Create(context.Background(), tt.req)

			var fieldErrs domain.FieldErrors
			require.ErrorAs(t, err, &fieldErrs)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Contains(t, fieldErrs, tt.field)
			assert.Empty(t, inv.owners)
		})
	}
}

func TestCreateRejectsEleventhServer(t *testing.T) {
	_, _, svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := svc.Create(ctx, create(fmt.Sprintf("s%d", i), "https://a.example"))
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, create("s10", "https://a.example"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 10)
}

// slowRepo adds a storage round trip before every create
type slowRepo struct {
	repositories.ToolServerRepository
}

func (r slowRepo) Create(ctx context.Context, cfg *models.ToolServerConfig, max int) error {
	time.Sleep(5 * time.Millisecond)
	return r.ToolServerRepository.Create(ctx, cfg, max)
}

func TestConcurrentCreatesRespectLimit(t *testing.T) {
	store := memory.NewStore()
	inv := &countingInvalidator{}
	svc := NewService(slowRepo{store.ToolServers()}, inv, gateway.NewTester(stubConnector{}, time.Second), discardLogger())
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		created  atomic.Int32
		rejected atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Create(ctx, create(fmt.Sprintf("s%d", i), "https://a.example"))
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, domain.ErrValidation):
				rejected.Add(1)
			default:
				t.Errorf("create s%d: %v", i, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(10), created.Load())
	assert.Equal(t, int32(20), rejected.Load())
	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 10)
	assert.Len(t, inv.owners, 10)
}

func TestDuplicateNameConflict(t *testing.T) {
	_, _, svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, create("search", "https://a.example"))
	require.NoError(t, err)
	other, err := svc.Create(ctx, create("docs", "https://b.example"))
	require.NoError(t, err)

	_, err = svc.Create(ctx, create("search", "https://c.example"))
	var conflict *domain.ConflictError
	assert.ErrorAs(t, err, &conflict)

	name := "search"
	_, err = svc.Update(ctx, "u1", other.ID, &models.UpdateToolServerRequest{Name: &name})
	assert.ErrorAs(t, err, &conflict)
}

func TestUpdateAndDeleteScopedToOwner(t *testing.T) {
	_, inv, svc := newTestService(t)
	ctx := context.Background()

	cfg, err := svc.Create(ctx, create("search", "https://a.example"))
	require.NoError(t, err)

	off := false
	_, err = svc.Update(ctx, "u2", cfg.ID, &models.UpdateToolServerRequest{Enabled: &off})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "u2", cfg.ID), domain.ErrNotFound)

	_, err = svc.Update(ctx, "u1", cfg.ID, &models.UpdateToolServerRequest{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	updated, err := svc.Update(ctx, "u1", cfg.ID, &models.UpdateToolServerRequest{Enabled: &off})
	require.NoError(t, err)
	assert.False(t, updated.Enabled)

	require.NoError(t, svc.Delete(ctx, "u1", cfg.ID))
	assert.Equal(t, []string{"u1", "u1", "u1"}, inv.owners)
}

func TestMutationsVisibleOnNextPoolLookup(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	cache := gateway.NewPoolCache(store.ToolServers(), stubConnector{}, gateway.CacheConfig{BuildTimeout: time.Second}, discardLogger())
	defer cache.Close()
	svc := NewService(store.ToolServers(), cache, gateway.NewTester(stubConnector{}, time.Second), discardLogger())

	pool, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, pool.GetTools())

	cfg, err := svc.Create(ctx, create("web", "https://web.example"))
	require.NoError(t, err)

	pool, err = cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, pool.IsMcpTool("web__search"))

	off := false
	_, err = svc.Update(ctx, "u1", cfg.ID, &models.UpdateToolServerRequest{Enabled: &off})
	require.NoError(t, err)

	pool, err = cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, pool.IsMcpTool("web__search"))
}

func TestTestDoesNotPersist(t *testing.T) {
	store, inv, svc := newTestService(t)
	ctx := context.Background()

	res, err := svc.Test(ctx, create("probe", "https://probe.example"))
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, []string{"search"}, res.Tools)

	list, err := store.ToolServers().List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, inv.owners)
}
