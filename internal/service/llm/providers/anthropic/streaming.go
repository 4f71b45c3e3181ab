package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	domainllm "margin/internal/domain/services/llm"
)

// StreamResponse generates a streaming response from Claude.
// Text deltas are forwarded as they arrive; tool_use blocks are emitted once
// their input JSON is complete; usage and stop reason come last.
func (p *Provider) StreamResponse(ctx context.Context, req *domainllm.GenerateRequest) (<-chan domainllm.StreamEvent, error) {
	if !p.SupportsModel(req.Model) {
		return nil, fmt.Errorf("model '%s' is not supported by Anthropic provider", req.Model)
	}

	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	eventChan := make(chan domainllm.StreamEvent, 10)

	go func() {
		defer close(eventChan)

		send := func(ev domainllm.StreamEvent) bool {
			select {
			case <-ctx.Done():
				return false
			case eventChan <- ev:
				return true
			}
		}

		stream := p.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		// Accumulator for tool inputs and final metadata
		message := anthropic.Message{}

		for stream.Next() {
			event := stream.Current()

			if err := message.Accumulate(event); err != nil {
				send(domainllm.StreamEvent{Error: fmt.Errorf("failed to accumulate message: %w", err)})
				return
			}

			ev, ok := transformAnthropicStreamEvent(event, &message)
			if !ok {
				continue
			}
			if !send(ev) {
				select {
				case eventChan <- domainllm.StreamEvent{Error: ctx.Err()}:
				default:
				}
				return
			}
		}

		if err := stream.Err(); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			send(domainllm.StreamEvent{Error: fmt.Errorf("anthropic streaming error: %w", err)})
			return
		}

		send(domainllm.StreamEvent{
			Metadata: &domainllm.StreamMetadata{
				Model:        string(message.Model),
				InputTokens:  int(message.Usage.InputTokens),
				OutputTokens: int(message.Usage.OutputTokens),
				StopReason:   string(message.StopReason),
			},
		})
	}()

	return eventChan, nil
}

// transformAnthropicStreamEvent converts an Anthropic streaming event to a
// domain StreamEvent. Events with nothing for the consumer return false.
func transformAnthropicStreamEvent(event anthropic.MessageStreamEventUnion, message *anthropic.Message) (domainllm.StreamEvent, bool) {
	switch e := event.AsAny().(type) {
	case anthropic.ContentBlockDeltaEvent:
		if e.Delta.Type == "text_delta" && e.Delta.Text != "" {
			return domainllm.StreamEvent{TextDelta: e.Delta.Text}, true
		}
		// input_json_delta is collected by Accumulate

	case anthropic.ContentBlockStopEvent:
		idx := int(e.Index)
		if idx < 0 || idx >= len(message.Content) {
			return domainllm.StreamEvent{}, false
		}
		block := message.Content[idx]
		if block.Type != "tool_use" {
			return domainllm.StreamEvent{}, false
		}
		input := json.RawMessage(block.Input)
		if len(input) == 0 {
			input = json.RawMessage(`{}`)
		}
		return domainllm.StreamEvent{ToolUse: &domainllm.ToolUse{
			ID:    block.ID,
			Name:  block.Name,
			Input: input,
		}}, true
	}

	// MessageStart, ContentBlockStart, MessageDelta and MessageStop only
	// feed the accumulator.
	return domainllm.StreamEvent{}, false
}
