package lorem

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	domainllm "margin/internal/domain/services/llm"
)

func collect(t *testing.T, ch <-chan domainllm.StreamEvent) (string, []*domainllm.ToolUse, *domainllm.StreamMetadata) {
	t.Helper()
	var text strings.Builder
	var uses []*domainllm.ToolUse
	var meta *domainllm.StreamMetadata
	for ev := range ch {
		if ev.Error != nil {
			t.Fatalf("unexpected stream error: %v", ev.Error)
		}
		text.WriteString(ev.TextDelta)
		if ev.ToolUse != nil {
			uses = append(uses, ev.ToolUse)
		}
		if ev.Metadata != nil {
			meta = ev.Metadata
		}
	}
	return text.String(), uses, meta
}

func TestStreamHighlightsFirstSentence(t *testing.T) {
	p := NewProvider().WithDelay(0)
	req := &domainllm.GenerateRequest{
		Model:     "lorem-fast",
		System:    "Base.\n<active_page tab=\"draft\">\nClimate change is bad. It is also real.\n</active_page>",
		Messages:  []domainllm.Message{domainllm.TextMessage("user", "thoughts?")},
		Tools:     []domainllm.ToolDefinition{{Name: "add_highlight"}},
		MaxTokens: 10,
	}

	ch, err := p.StreamResponse(context.Background(), req)
	if err != nil {
		t.Fatalf("StreamResponse() error = %v", err)
	}
	text, uses, meta := collect(t, ch)

	if got := len(strings.Fields(text)); got != 10 {
		t.Errorf("word count = %d, want 10", got)
	}
	if len(uses) != 1 {
		t.Fatalf("tool uses = %d, want 1", len(uses))
	}
	var input map[string]string
	if err := json.Unmarshal(uses[0].Input, &input); err != nil {
		t.Fatalf("bad tool input: %v", err)
	}
	if input["matchText"] != "Climate change is bad." {
		t.Errorf("matchText = %q", input["matchText"])
	}
	if meta == nil || meta.StopReason != domainllm.StopToolUse {
		t.Errorf("metadata = %+v, want tool_use stop", meta)
	}
}

func TestStreamEndsAfterToolResult(t *testing.T) {
	p := NewProvider().WithDelay(0)
	req := &domainllm.GenerateRequest{
		Model:  "lorem-fast",
		System: "<active_page>Hello there.</active_page>",
		Messages: []domainllm.Message{
			domainllm.TextMessage("user", "hi"),
			{Role: "user", Content: []domainllm.ContentBlock{{Type: domainllm.BlockToolResult, ToolUseID: "x", Content: "ok"}}},
		},
		Tools:     []domainllm.ToolDefinition{{Name: "add_highlight"}},
		MaxTokens: 5,
	}
	ch, err := p.StreamResponse(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	_, uses, meta := collect(t, ch)
	if len(uses) != 0 {
		t.Errorf("tool uses = %d, want 0", len(uses))
	}
	if meta == nil || meta.StopReason != domainllm.StopEndTurn {
		t.Errorf("metadata = %+v, want end_turn", meta)
	}
}

func TestFirstSentence(t *testing.T) {
	tests := []struct {
		system, want string
	}{
		{"<active_page>One. Two.</active_page>", "One."},
		{"<active_page tab=\"final\">\n  Why not? Because.\n</active_page>", "Why not?"},
		{"<active_page>no terminal punctuation\nsecond line</active_page>", "no terminal punctuation"},
		{"nothing here", ""},
	}
	for _, tt := range tests {
		if got := firstSentence(tt.system); got != tt.want {
			t.Errorf("firstSentence(%q) = %q, want %q", tt.system, got, tt.want)
		}
	}
}
