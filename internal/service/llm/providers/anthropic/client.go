package anthropic

import (
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	domainllm "margin/internal/domain/services/llm"
)

// Provider implements the LLMProvider interface for Anthropic (Claude) models.
type Provider struct {
	client           *anthropic.Client
	defaultMaxTokens int
}

// NewProvider creates a new Anthropic provider with the given API key.
func NewProvider(apiKey string, defaultMaxTokens int, opts ...option.RequestOption) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if defaultMaxTokens <= 0 {
		defaultMaxTokens = 4096
	}

	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)

	return &Provider{
		client:           &client,
		defaultMaxTokens: defaultMaxTokens,
	}, nil
}

var _ domainllm.LLMProvider = (*Provider)(nil)

// Name returns the provider name.
func (p *Provider) Name() string {
	return "anthropic"
}

// SupportsModel returns true if this provider supports the given model.
// Anthropic models start with "claude-"
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "claude-")
}

// buildParams converts a domain request into SDK parameters
func (p *Provider) buildParams(req *domainllm.GenerateRequest) (anthropic.MessageNewParams, error) {
	messages, err := convertToAnthropicMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("failed to convert messages: %w", err)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}
	return params, nil
}
