package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainllm "margin/internal/domain/services/llm"
)

var toolUseStream = []struct{ event, data string }{
	{"message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-haiku-4-5-20251001","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":12,"output_tokens":1}}}`},
	{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
	{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Consider "}}`},
	{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"this."}}`},
	{"content_block_stop", `{"type":"content_block_stop","index":0}`},
	{"content_block_start", `{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"add_highlight","input":{}}}`},
	{"content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"type\":\"edit\","}}`},
	{"content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"matchText\":\"bad\"}"}}`},
	{"content_block_stop", `{"type":"content_block_stop","index":1}`},
	{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"tool_use","stop_sequence":null},"usage":{"output_tokens":30}}`},
	{"message_stop", `{"type":"message_stop"}`},
}

func TestStreamResponseTextAndToolUse(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range toolUseStream {
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.event, f.data)
		}
	}))
	defer srv.Close()

	p, err := NewProvider("test-key", 1024, option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	require.NoError(t, err)

	events, err := p.StreamResponse(context.Background(), &domainllm.GenerateRequest{
		Model:    "claude-haiku-4-5-20251001",
		System:   "be brief",
		Messages: []domainllm.Message{domainllm.TextMessage("user", "hi")},
		Tools: []domainllm.ToolDefinition{{
			Name:        "add_highlight",
			Description: "annotate",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"matchText": map[string]interface{}{"type": "string"}},
				"required":   []interface{}{"matchText"},
			},
		}},
	})
	require.NoError(t, err)

	var text strings.Builder
	var uses []*domainllm.ToolUse
	var meta *domainllm.StreamMetadata
	for ev := range events {
		require.NoError(t, ev.Error)
		text.WriteString(ev.TextDelta)
		if ev.ToolUse != nil {
			uses = append(uses, ev.ToolUse)
		}
		if ev.Metadata != nil {
			meta = ev.Metadata
		}
	}

	assert.Equal(t, "Consider this.", text.String())
	require.Len(t, uses, 1)
	assert.Equal(t, "toolu_1", uses[0].ID)
	assert.Equal(t, "add_highlight", uses[0].Name)
	assert.JSONEq(t, `{"type":"edit","matchText":"bad"}`, string(uses[0].Input))

	require.NotNil(t, meta)
	assert.Equal(t, domainllm.StopToolUse, meta.StopReason)
	assert.Equal(t, 12, meta.InputTokens)
	assert.Equal(t, 30, meta.OutputTokens)

	assert.Equal(t, true, body["stream"])
	assert.EqualValues(t, 1024, body["max_tokens"])
	tools, _ := body["tools"].([]interface{})
	assert.Len(t, tools, 1)
}

func TestStreamResponseRejectsForeignModel(t *testing.T) {
	p, err := NewProvider("k", 0)
	require.NoError(t, err)
	_, err = p.StreamResponse(context.Background(), &domainllm.GenerateRequest{Model: "lorem-fast"})
	assert.Error(t, err)
}

func TestConvertMessagesToolRoundTrip(t *testing.T) {
	msgs := []domainllm.Message{
		domainllm.TextMessage("user", "check my draft"),
		{Role: "assistant", Content: []domainllm.ContentBlock{
			{Type: domainllm.BlockText, Text: "Looking."},
			{Type: domainllm.BlockToolUse, ToolUseID: "t1", ToolName: "web__search"},
		}},
		{Role: "user", Content: []domainllm.ContentBlock{
			{Type: domainllm.BlockToolResult, ToolUseID: "t1", Content: "timeout", IsError: true},
		}},
	}
	out, err := convertToAnthropicMessages(msgs)
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.NotNil(t, out[1].Content[1].OfToolUse)
	assert.Equal(t, "web__search", out[1].Content[1].OfToolUse.Name)
	require.NotNil(t, out[2].Content[0].OfToolResult)
	assert.Equal(t, "t1", out[2].Content[0].OfToolResult.ToolUseID)

	_, err = convertToAnthropicMessages([]domainllm.Message{domainllm.TextMessage("system", "x")})
	assert.Error(t, err)
}
