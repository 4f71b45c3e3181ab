package llm

import (
	"fmt"

	"margin/internal/config"
	domainllm "margin/internal/domain/services/llm"
	"margin/internal/service/llm/providers/anthropic"
	"margin/internal/service/llm/providers/lorem"
)

// ProviderFactory creates LLM provider instances from config
type ProviderFactory struct {
	config *config.Config
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(cfg *config.Config) *ProviderFactory {
	return &ProviderFactory{
		config: cfg,
	}
}

// GetProvider returns a provider instance for the given provider name
//
// Supported providers:
//   - "anthropic" - Claude models via Anthropic API
//   - "lorem" - Mock provider for testing (no API key required)
func (f *ProviderFactory) GetProvider(providerName string) (domainllm.LLMProvider, error) {
	switch providerName {
	case "anthropic":
		if f.config.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
		provider, err := anthropic.NewProvider(f.config.AnthropicAPIKey, f.config.MaxOutputTokens)
		if err != nil {
			return nil, fmt.Errorf("failed to create Anthropic provider: %w", err)
		}
		return provider, nil

	case "lorem":
		return lorem.NewProvider(), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s", providerName)
	}
}
