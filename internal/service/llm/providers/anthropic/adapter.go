package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	domainllm "margin/internal/domain/services/llm"
)

// convertToAnthropicMessages converts domain messages to Anthropic SDK format.
func convertToAnthropicMessages(messages []domainllm.Message) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))

	for i, msg := range messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Content))

		for _, block := range msg.Content {
			switch block.Type {
			case domainllm.BlockText:
				if block.Text == "" {
					continue // the API rejects empty text blocks
				}
				blocks = append(blocks, anthropic.NewTextBlock(block.Text))

			case domainllm.BlockToolUse:
				input := block.Input
				if len(input) == 0 {
					input = json.RawMessage(`{}`)
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    block.ToolUseID,
						Name:  block.ToolName,
						Input: input,
					},
				})

			case domainllm.BlockToolResult:
				blocks = append(blocks, anthropic.NewToolResultBlock(block.ToolUseID, block.Content, block.IsError))

			default:
				return nil, fmt.Errorf("message %d: unsupported block type '%s'", i, block.Type)
			}
		}
		if len(blocks) == 0 {
			continue
		}

		var message anthropic.MessageParam
		switch msg.Role {
		case "user":
			message = anthropic.NewUserMessage(blocks...)
		case "assistant":
			message = anthropic.NewAssistantMessage(blocks...)
		default:
			return nil, fmt.Errorf("message %d: unsupported role '%s'", i, msg.Role)
		}

		result = append(result, message)
	}

	return result, nil
}

// convertTools maps JSON Schema tool definitions onto SDK tool params.
func convertTools(defs []domainllm.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schema := anthropic.ToolInputSchemaParam{
			Properties: def.InputSchema["properties"],
			Required:   requiredFields(def.InputSchema["required"]),
		}
		tool := &anthropic.ToolParam{
			Name:        def.Name,
			InputSchema: schema,
		}
		if def.Description != "" {
			tool.Description = anthropic.String(def.Description)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: tool})
	}
	return out
}

// requiredFields accepts both []string and decoded JSON arrays
func requiredFields(v interface{}) []string {
	switch r := v.(type) {
	case []string:
		return r
	case []interface{}:
		out := make([]string, 0, len(r))
		for _, item := range r {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
