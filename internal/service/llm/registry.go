package llm

import (
	"fmt"
	"sync"

	"margin/internal/capabilities"
	domainllm "margin/internal/domain/services/llm"
)

// providerSource builds providers by name
type providerSource interface {
	GetProvider(name string) (domainllm.LLMProvider, error)
}

// ProviderRegistry routes model ids to providers using the model catalog.
// Providers are created on first use and cached.
type ProviderRegistry struct {
	factory providerSource
	models  *capabilities.Registry
	cache   map[string]domainllm.LLMProvider
	mu      sync.RWMutex
}

// NewProviderRegistry creates a new provider registry.
func NewProviderRegistry(factory providerSource, models *capabilities.Registry) *ProviderRegistry {
	return &ProviderRegistry{
		factory: factory,
		models:  models,
		cache:   make(map[string]domainllm.LLMProvider),
	}
}

// GetProvider returns the provider for the given provider name.
func (r *ProviderRegistry) GetProvider(provider string) (domainllm.LLMProvider, error) {
	if provider == "" {
		return nil, fmt.Errorf("provider cannot be empty")
	}

	r.mu.RLock()
	if cached, exists := r.cache[provider]; exists {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have created it while we waited for the lock
	if cached, exists := r.cache[provider]; exists {
		return cached, nil
	}

	p, err := r.factory.GetProvider(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider '%s': %w", provider, err)
	}
	r.cache[provider] = p
	return p, nil
}

// ForModel returns the catalog entry and provider serving model
func (r *ProviderRegistry) ForModel(model string) (domainllm.LLMProvider, *capabilities.ModelCapabilities, error) {
	caps, err := r.models.Model(model)
	if err != nil {
		return nil, nil, err
	}
	p, err := r.GetProvider(caps.Provider)
	if err != nil {
		return nil, nil, err
	}
	if !p.SupportsModel(model) {
		return nil, nil, fmt.Errorf("provider %s does not serve model %s", p.Name(), model)
	}
	return p, caps, nil
}

// Validate checks that the registry is usable.
// Should be called at startup to fail fast if misconfigured.
func (r *ProviderRegistry) Validate(defaultModel string) error {
	if r.factory == nil {
		return fmt.Errorf("provider factory is not configured")
	}
	if _, _, err := r.ForModel(defaultModel); err != nil {
		return fmt.Errorf("default model unavailable: %w", err)
	}
	return nil
}
