// Package lorem is a mock provider that streams lorem ipsum and, when the
// highlight tool is offered, annotates the first sentence of the active page.
package lorem

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	loremgen "github.com/bozaro/golorem"

	domainllm "margin/internal/domain/services/llm"
)

// maxWords caps a mock reply regardless of MaxTokens
const maxWords = 60

var (
	activePage    = regexp.MustCompile(`(?s)<` + domainllm.ActivePageTag + `[^>]*>\s*(.*?)\s*</` + domainllm.ActivePageTag + `>`)
	sentenceBreak = regexp.MustCompile(`[.!?](\s|$)`)
)

// Provider is a mock LLM provider that generates lorem ipsum text.
// Used for testing and development without requiring real API keys.
type Provider struct {
	generator *loremgen.Lorem
	// delay overrides the model's per-word delay when non-negative
	delay time.Duration
}

// NewProvider creates a new lorem ipsum provider.
func NewProvider() *Provider {
	return &Provider{
		generator: loremgen.New(),
		delay:     -1,
	}
}

// WithDelay sets a fixed per-word delay. Tests use zero.
func (p *Provider) WithDelay(d time.Duration) *Provider {
	p.delay = d
	return p
}

var _ domainllm.LLMProvider = (*Provider)(nil)

// Name returns the provider name.
func (p *Provider) Name() string {
	return "lorem"
}

// SupportsModel returns true if the model name starts with "lorem-".
// Example models: "lorem-fast", "lorem-slow"
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "lorem-")
}

// getStreamDelay returns the delay between words based on the model name.
// - lorem-slow: 2 words/second
// - lorem-fast: 30 words/second
// - default: 10 words/second
func getStreamDelay(model string) time.Duration {
	if strings.Contains(model, "slow") {
		return 500 * time.Millisecond
	}
	if strings.Contains(model, "fast") {
		return 33 * time.Millisecond
	}
	return 100 * time.Millisecond
}

// StreamResponse streams lorem ipsum words. On the first round, if
// add_highlight is offered and the prompt carries an active page, it also
// requests a highlight on that page's first sentence.
func (p *Provider) StreamResponse(ctx context.Context, req *domainllm.GenerateRequest) (<-chan domainllm.StreamEvent, error) {
	if !p.SupportsModel(req.Model) {
		return nil, fmt.Errorf("model '%s' is not supported by lorem provider", req.Model)
	}

	delay := p.delay
	if delay < 0 {
		delay = getStreamDelay(req.Model)
	}
	words := maxWords
	if req.MaxTokens > 0 && req.MaxTokens < words {
		words = req.MaxTokens
	}

	var highlight *domainllm.ToolUse
	if offersTool(req.Tools, "add_highlight") && !afterToolResult(req.Messages) {
		if sentence := firstSentence(req.System); sentence != "" {
			input, _ := json.Marshal(map[string]string{
				"type":      "suggestion",
				"matchText": sentence,
				"comment":   p.generator.Sentence(6, 12),
			})
			highlight = &domainllm.ToolUse{
				ID:    fmt.Sprintf("lorem_%d", time.Now().UnixNano()),
				Name:  "add_highlight",
				Input: input,
			}
		}
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

		sent := 0
		for _, word := range strings.Fields(p.generateTextWords(words)) {
			if sent >= words {
				break
			}
			if !send(domainllm.StreamEvent{TextDelta: word + " "}) {
				return
			}
			sent++
			if delay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(delay):
				}
			}
		}

		stopReason := domainllm.StopEndTurn
		if highlight != nil {
			if !send(domainllm.StreamEvent{ToolUse: highlight}) {
				return
			}
			stopReason = domainllm.StopToolUse
		}

		send(domainllm.StreamEvent{
			Metadata: &domainllm.StreamMetadata{
				Model:        req.Model,
				InputTokens:  estimateTokens(req),
				OutputTokens: sent,
				StopReason:   stopReason,
			},
		})
	}()

	return eventChan, nil
}

// generateTextWords generates lorem ipsum text with approximately targetWords words.
func (p *Provider) generateTextWords(targetWords int) string {
	var sb strings.Builder
	wordCount := 0
	for wordCount < targetWords {
		sentence := p.generator.Sentence(5, 15)
		sb.WriteString(sentence)
		sb.WriteString(" ")
		wordCount += len(strings.Fields(sentence))
	}
	return strings.TrimSpace(sb.String())
}

// firstSentence returns the first sentence of the active page section
func firstSentence(system string) string {
	m := activePage.FindStringSubmatch(system)
	if m == nil {
		return ""
	}
	text := strings.TrimSpace(m[1])
	if loc := sentenceBreak.FindStringIndex(text); loc != nil {
		text = text[:loc[0]+1]
	}
	if line, _, ok := strings.Cut(text, "\n"); ok {
		text = line
	}
	return strings.TrimSpace(text)
}

func offersTool(tools []domainllm.ToolDefinition, name string) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// afterToolResult reports whether the last message answers a tool call
func afterToolResult(messages []domainllm.Message) bool {
	if len(messages) == 0 {
		return false
	}
	for _, b := range messages[len(messages)-1].Content {
		if b.Type == domainllm.BlockToolResult {
			return true
		}
	}
	return false
}

// estimateTokens uses word count as a rough approximation.
func estimateTokens(req *domainllm.GenerateRequest) int {
	total := len(strings.Fields(req.System))
	for _, msg := range req.Messages {
		for _, block := range msg.Content {
			total += len(strings.Fields(block.Text))
		}
	}
	return total
}
