package sse

import "time"

// Config holds configuration for SSE connections
type Config struct {
	// KeepAliveInterval is how often a comment frame is written while a turn
	// is quiet, so proxies do not drop the connection.
	KeepAliveInterval time.Duration
}

// DefaultConfig returns the default SSE configuration.
// 15 seconds stays under the idle cutoff of common proxies.
func DefaultConfig() *Config {
	return &Config{
		KeepAliveInterval: 15 * time.Second,
	}
}
