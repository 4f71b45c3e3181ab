package tools

// ToolRegistryBuilder provides a fluent API for building per-turn registries.
type ToolRegistryBuilder struct {
	registry *ToolRegistry
}

// NewToolRegistryBuilder creates a new builder with a fresh registry.
func NewToolRegistryBuilder(config *ToolConfig) *ToolRegistryBuilder {
	return &ToolRegistryBuilder{registry: NewToolRegistry(config)}
}

// WithExecutor registers a named executor.
func (b *ToolRegistryBuilder) WithExecutor(name string, executor ToolExecutor) *ToolRegistryBuilder {
	b.registry.Register(name, executor)
	return b
}

// WithGateway sends every unregistered name to caller.
// A nil caller leaves unknown names as "tool not found" errors.
func (b *ToolRegistryBuilder) WithGateway(caller ExternalCaller) *ToolRegistryBuilder {
	if caller != nil {
		b.registry.SetFallback(caller)
	}
	return b
}

// Build returns the constructed tool registry.
func (b *ToolRegistryBuilder) Build() *ToolRegistry {
	return b.registry
}
