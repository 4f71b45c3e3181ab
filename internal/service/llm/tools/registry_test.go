package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// mockTool is a test implementation of ToolExecutor.
type mockTool struct {
	name       string
	delay      time.Duration
	shouldFail bool
	execCount  int
	mu         sync.Mutex
}

func (m *mockTool) Execute(ctx context.Context, input map[string]interface{}) (interface{}, error) {
	m.mu.Lock()
	m.execCount++
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.shouldFail {
		return nil, errors.New("mock tool failed")
	}

	return map[string]interface{}{
		"tool":  m.name,
		"input": input,
	}, nil
}

// mockGateway records calls routed through the fallback.
type mockGateway struct {
	mu     sync.Mutex
	calls  []string
	result CallResult
	delay  time.Duration
}

func (g *mockGateway) CallTool(ctx context.Context, name string, args map[string]interface{}) CallResult {
	g.mu.Lock()
	g.calls = append(g.calls, name)
	g.mu.Unlock()

	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return CallResult{Content: ctx.Err().Error(), IsError: true}
		}
	}
	return g.result
}

func TestToolRegistry_Execute(t *testing.T) {
	registry := NewToolRegistry(nil)
	ctx := context.Background()

	t.Run("successful execution", func(t *testing.T) {
		registry.Register("success_tool", &mockTool{name: "success_tool"})

		result := registry.Execute(ctx, ToolCall{
			ID:    "call_1",
			Name:  "success_tool",
			Input: map[string]interface{}{"param": "value"},
		})

		if result.IsError {
			t.Errorf("expected success, got error: %v", result.Error)
		}
		if result.ID != "call_1" {
			t.Errorf("expected ID 'call_1', got %s", result.ID)
		}
		if !strings.Contains(result.Content(), `"tool":"success_tool"`) {
			t.Errorf("Content() = %q", result.Content())
		}
	})

	t.Run("tool not found without gateway", func(t *testing.T) {
		result := registry.Execute(ctx, ToolCall{ID: "call_2", Name: "non_existent_tool"})

		if !result.IsError {
			t.Error("expected error for non-existent tool")
		}
		if result.Content() != "tool not found: non_existent_tool" {
			t.Errorf("Content() = %q", result.Content())
		}
	})

	t.Run("tool execution failure", func(t *testing.T) {
		registry.Register("fail_tool", &mockTool{name: "fail_tool", shouldFail: true})

		result := registry.Execute(ctx, ToolCall{ID: "call_3", Name: "fail_tool"})

		if !result.IsError || result.Error == nil {
			t.Error("expected error for failed tool execution")
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		registry.Register("slow_tool", &mockTool{name: "slow_tool", delay: 500 * time.Millisecond})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result := registry.Execute(ctx, ToolCall{ID: "call_4", Name: "slow_tool"})

		if !errors.Is(result.Error, context.Canceled) {
			t.Errorf("expected context.Canceled error, got: %v", result.Error)
		}
	})
}

func TestToolRegistry_Fallback(t *testing.T) {
	gw := &mockGateway{result: CallResult{Content: "search results"}}
	registry := NewToolRegistryBuilder(nil).
		WithExecutor("local", &mockTool{name: "local"}).
		WithGateway(gw).
		Build()

	local := registry.Execute(context.Background(), ToolCall{ID: "a", Name: "local"})
	remote := registry.Execute(context.Background(), ToolCall{ID: "b", Name: "search__web"})

	if local.IsError || remote.IsError {
		t.Fatalf("unexpected errors: %v / %v", local.Error, remote.Error)
	}
	if remote.Content() != "search results" {
		t.Errorf("remote Content() = %q", remote.Content())
	}
	if len(gw.calls) != 1 || gw.calls[0] != "search__web" {
		t.Errorf("gateway calls = %v, want [search__web]", gw.calls)
	}

	gw.result = CallResult{Content: "upstream 500", IsError: true}
	failed := registry.Execute(context.Background(), ToolCall{ID: "c", Name: "search__web"})
	if !failed.IsError || failed.Content() != "upstream 500" {
		t.Errorf("failed result = %+v", failed)
	}
}

func TestToolRegistry_Timeout(t *testing.T) {
	gw := &mockGateway{delay: time.Second, result: CallResult{Content: "late"}}
	registry := NewToolRegistry(&ToolConfig{CallTimeout: 20 * time.Millisecond})
	registry.SetFallback(gw)

	start := time.Now()
	result := registry.Execute(context.Background(), ToolCall{ID: "t", Name: "slow__tool"})

	if time.Since(start) > 500*time.Millisecond {
		t.Error("timeout did not bound the call")
	}
	if !result.IsError {
		t.Fatal("expected timeout error result")
	}
	if !strings.Contains(result.Content(), "timed out") {
		t.Errorf("Content() = %q, want timeout message", result.Content())
	}
}

func TestToolRegistry_TruncatesStringResults(t *testing.T) {
	gw := &mockGateway{result: CallResult{Content: strings.Repeat("é", 50)}}
	registry := NewToolRegistry(&ToolConfig{MaxResultSize: 10})
	registry.SetFallback(gw)

	got := registry.Execute(context.Background(), ToolCall{Name: "x__y"}).Content()
	if got != strings.Repeat("é", 10)+"\n[truncated]" {
		t.Errorf("Content() = %q", got)
	}
}

func TestToolRegistry_ExecuteParallel(t *testing.T) {
	t.Run("empty calls", func(t *testing.T) {
		results := NewToolRegistry(nil).ExecuteParallel(context.Background(), []ToolCall{})
		if len(results) != 0 {
			t.Errorf("expected 0 results, got %d", len(results))
		}
	})

	t.Run("parallel execution is faster than serial", func(t *testing.T) {
		registry := NewToolRegistry(nil)
		for i := 0; i < 3; i++ {
			registry.Register(fmt.Sprintf("tool_%d", i), &mockTool{
				name:  fmt.Sprintf("tool_%d", i),
				delay: 100 * time.Millisecond,
			})
		}

		calls := []ToolCall{
			{ID: "call_0", Name: "tool_0"},
			{ID: "call_1", Name: "tool_1"},
			{ID: "call_2", Name: "tool_2"},
		}

		start := time.Now()
		results := registry.ExecuteParallel(context.Background(), calls)
		elapsed := time.Since(start)

		// ~100ms in parallel, ~300ms serial
		if elapsed > 250*time.Millisecond {
			t.Errorf("parallel execution took too long: %v", elapsed)
		}
		for i, result := range results {
			if result.IsError {
				t.Errorf("result %d has error: %v", i, result.Error)
			}
		}
	})

	t.Run("order preservation", func(t *testing.T) {
		registry := NewToolRegistry(nil)

		// Different delays so tools finish out of order
		delays := []time.Duration{50 * time.Millisecond, 10 * time.Millisecond, 100 * time.Millisecond}
		for i, delay := range delays {
			registry.Register(fmt.Sprintf("tool_%d", i), &mockTool{name: fmt.Sprintf("tool_%d", i), delay: delay})
		}

		calls := []ToolCall{
			{ID: "call_0", Name: "tool_0"},
			{ID: "call_1", Name: "tool_1"},
			{ID: "call_2", Name: "tool_2"},
		}
		results := registry.ExecuteParallel(context.Background(), calls)

		for i, result := range results {
			if want := fmt.Sprintf("call_%d", i); result.ID != want {
				t.Errorf("result %d has wrong ID: got %s, expected %s", i, result.ID, want)
			}
			resultMap, ok := result.Result.(map[string]interface{})
			if !ok {
				t.Errorf("result %d is not a map", i)
				continue
			}
			if want := fmt.Sprintf("tool_%d", i); resultMap["tool"] != want {
				t.Errorf("result %d has wrong tool name: got %v, expected %s", i, resultMap["tool"], want)
			}
		}
	})

	t.Run("mixed success and failure", func(t *testing.T) {
		registry := NewToolRegistry(nil)
		registry.Register("success_tool", &mockTool{name: "success_tool"})
		registry.Register("fail_tool", &mockTool{name: "fail_tool", shouldFail: true})

		results := registry.ExecuteParallel(context.Background(), []ToolCall{
			{ID: "call_0", Name: "success_tool"},
			{ID: "call_1", Name: "fail_tool"},
			{ID: "call_2", Name: "non_existent"},
			{ID: "call_3", Name: "success_tool"},
		})

		want := []bool{false, true, true, false}
		for i, result := range results {
			if result.IsError != want[i] {
				t.Errorf("result %d IsError = %v, want %v", i, result.IsError, want[i])
			}
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		registry := NewToolRegistry(nil)
		tool := &mockTool{name: "tool", delay: 500 * time.Millisecond}
		registry.Register("tool", tool)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		results := registry.ExecuteParallel(ctx, []ToolCall{{ID: "a", Name: "tool"}, {ID: "b", Name: "tool"}})
		for i, result := range results {
			if !errors.Is(result.Error, context.Canceled) {
				t.Errorf("result %d error = %v, want context.Canceled", i, result.Error)
			}
		}
	})
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		want ToolKind
	}{
		{"add_highlight", KindHighlight},
		{"cite_source", KindCitation},
		{"search__web_search", KindExternal},
		{"anything_else", KindExternal},
	}
	for _, tt := range tests {
		if got := KindOf(tt.name); got != tt.want {
			t.Errorf("KindOf(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
