package llm

import (
	"fmt"
	"log/slog"

	"margin/internal/capabilities"
	"margin/internal/config"
)

// SetupProviders initializes the provider factory and registry for routing.
// Fails fast when the default model has no usable provider.
func SetupProviders(cfg *config.Config, models *capabilities.Registry, logger *slog.Logger) (*ProviderRegistry, error) {
	registry := NewProviderRegistry(NewProviderFactory(cfg), models)

	if err := registry.Validate(cfg.DefaultModel); err != nil {
		return nil, fmt.Errorf("provider registry validation failed: %w", err)
	}

	if cfg.AnthropicAPIKey != "" {
		logger.Info("provider available", "name", "anthropic", "models", len(models.ProviderModels("anthropic")))
	} else {
		logger.Warn("ANTHROPIC_API_KEY not set - Anthropic provider not available")
	}
	logger.Info("provider available", "name", "lorem", "models", len(models.ProviderModels("lorem")))
	logger.Info("provider registry initialized", "default_model", cfg.DefaultModel)

	return registry, nil
}
