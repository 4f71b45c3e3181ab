package assistant

import (
	"fmt"
	"strings"

	"margin/internal/domain/models"
	domainllm "margin/internal/domain/services/llm"
	"margin/internal/markdown"
	"margin/internal/service/llm/tools"
)

const baseInstructions = `You are a writing coach inside a writing app. The writer's pages are below.
Help them think, structure and revise. Never rewrite their work wholesale.

Use the add_highlight tool to point at specific passages. matchText must be
copied exactly from the page text, including punctuation, and should be a
short span (a phrase or one sentence). Highlight types:
- question: ask the writer something about the passage
- suggestion: propose a direction
- edit: a concrete rewrite, given in suggestedEdit
- voice: tone or style drifts from the writer's voice
- weakness: the argument is thin here
- evidence: a claim needs support
- wordiness: the passage can be tightened
- factcheck: a factual claim should be verified

Keep chat replies short; put detail into highlights.`

const toolInstructions = `You can call external tools to research. When you rely on a web page
or reference, call cite_source with its url and title. Only cite sources you
actually consulted.`

// promptInput is everything the system prompt is built from
type promptInput struct {
	pages      map[models.PageSlot]string // stripped plain text
	active     models.PageSlot
	samples    []models.WorkSample
	toolAccess bool
}

// buildSystemPrompt assembles base instructions, tool instructions, the
// active page, the other non-empty pages and work samples, each labeled.
func buildSystemPrompt(in promptInput) string {
	var sb strings.Builder
	sb.WriteString(baseInstructions)

	if in.toolAccess {
		sb.WriteString("\n\n")
		sb.WriteString(toolInstructions)
	}

	active := in.pages[in.active]
	fmt.Fprintf(&sb, "\n\n<%s tab=%q words=\"%d\">\n%s\n</%s>",
		domainllm.ActivePageTag, in.active, markdown.PlainWords(active), active, domainllm.ActivePageTag)

	for _, slot := range models.PageSlots {
		text := in.pages[slot]
		if slot == in.active || strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Fprintf(&sb, "\n\n<page tab=%q words=\"%d\">\n%s\n</page>", slot, markdown.PlainWords(text), text)
	}

	if len(in.samples) > 0 {
		sb.WriteString("\n\nThe writer's earlier finished work, for matching their style:")
		for _, s := range in.samples {
			fmt.Fprintf(&sb, "\n\n<work_sample title=%q>\n%s\n</work_sample>", s.Title, s.Text)
		}
	}
	return sb.String()
}

// toolDefinitions lists the tools offered this turn. add_highlight is always
// offered to tool-capable models; citation and external tools need tool access.
func toolDefinitions(supportsTools, toolAccess bool, external []domainllm.ToolDefinition) []domainllm.ToolDefinition {
	if !supportsTools {
		return nil
	}
	defs := []domainllm.ToolDefinition{tools.HighlightDefinition()}
	if toolAccess {
		defs = append(defs, tools.CitationDefinition())
		defs = append(defs, external...)
	}
	return defs
}

// historyMessages converts stored messages for the model. The first message
// sent must be from the user.
func historyMessages(history []models.ConversationMessage) []domainllm.Message {
	start := 0
	for start < len(history) && history[start].Role != models.RoleUser {
		start++
	}

	out := make([]domainllm.Message, 0, len(history)-start)
	for _, m := range history[start:] {
		text := m.Content
		if m.Role == models.RoleAssistant && len(m.Highlights) > 0 {
			text = appendHighlightNote(text, m.Highlights)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, domainllm.TextMessage(string(m.Role), text))
	}
	return out
}

func appendHighlightNote(text string, hs []models.Highlight) string {
	var sb strings.Builder
	sb.WriteString(text)
	if text != "" {
		sb.WriteString("\n\n")
	}
	sb.WriteString("[Highlights added:")
	for _, h := range hs {
		fmt.Fprintf(&sb, "\n- %s: %q", h.Type, h.MatchText)
	}
	sb.WriteString("]")
	return sb.String()
}
