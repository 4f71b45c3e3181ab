package tools

// ToolKind classifies a tool name for dispatch.
type ToolKind int

const (
	// KindExternal is any tool served by a user's tool server
	KindExternal ToolKind = iota
	// KindHighlight annotates a span of the user's text
	KindHighlight
	// KindCitation cites an external source
	KindCitation
)

// Local tool names
const (
	HighlightToolName = "add_highlight"
	CitationToolName  = "cite_source"
)

func (k ToolKind) String() string {
	switch k {
	case KindHighlight:
		return "highlight"
	case KindCitation:
		return "citation"
	default:
		return "external"
	}
}

// KindOf maps a tool name to its kind. Unknown names are external.
func KindOf(name string) ToolKind {
	switch name {
	case HighlightToolName:
		return KindHighlight
	case CitationToolName:
		return KindCitation
	default:
		return KindExternal
	}
}
