package config

const (
	// MaxMessageLength is the maximum length of a chat message, in characters.
	MaxMessageLength = 6000

	// MaxPageLength bounds a single submitted page. Pages are request-time
	// snapshots and this keeps one request under the 10MB body limit.
	MaxPageLength = 200_000

	// HistoryWindow is how many recent messages are sent to the model.
	// Older messages stay in storage.
	HistoryWindow = 30

	// MaxToolRounds caps tool-use rounds per turn.
	MaxToolRounds = 10

	// HighlightCap is the most highlights kept per project. Oldest go first.
	HighlightCap = 200

	// MaxToolServers is the per-owner limit of configured tool servers.
	MaxToolServers = 10

	// MaxToolServerNameLength keeps namespaced tool names within provider limits.
	MaxToolServerNameLength = 64

	// MaxToolNameLength is the provider limit on tool names.
	MaxToolNameLength = 64

	// WorkSampleCount is how many completed projects are shown to the model
	// as style samples.
	WorkSampleCount = 2

	// WorkSampleLength truncates each style sample.
	WorkSampleLength = 2000
)
