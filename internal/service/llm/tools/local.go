package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"margin/internal/domain/models"
	"margin/internal/domain/services/llm"
)

const highlightSchema = `{
	"type": "object",
	"properties": {
		"type": {
			"type": "string",
			"enum": ["question", "suggestion", "edit", "voice", "weakness", "evidence", "wordiness", "factcheck"],
			"description": "Kind of feedback."
		},
		"matchText": {
			"type": "string",
			"minLength": 1,
			"description": "Exact text copied verbatim from the writer's page. Keep it short: a phrase or one sentence."
		},
		"comment": {
			"type": "string",
			"minLength": 1,
			"description": "Your feedback on this text."
		},
		"suggestedEdit": {
			"type": "string",
			"description": "Replacement text. Required for edit and wordiness."
		}
	},
	"required": ["type", "matchText", "comment"]
}`

const citationSchema = `{
	"type": "object",
	"properties": {
		"url": {"type": "string", "format": "uri", "description": "Source URL."},
		"title": {"type": "string", "minLength": 1, "description": "Source title."}
	},
	"required": ["url", "title"]
}`

// LocalTool is a tool handled inside the assistant rather than by a tool server.
type LocalTool struct {
	Definition llm.ToolDefinition
	schema     *jsonschema.Schema
}

var (
	highlightTool = mustLocalTool(HighlightToolName,
		"Highlight a span of the writer's text and attach feedback. The matchText must be copied exactly from the page, including punctuation.",
		highlightSchema)
	citationTool = mustLocalTool(CitationToolName,
		"Cite an external source you used, so the writer can check it.",
		citationSchema)
)

func mustLocalTool(name, description, schema string) *LocalTool {
	var props map[string]interface{}
	if err := json.Unmarshal([]byte(schema), &props); err != nil {
		panic(fmt.Sprintf("tool %s: bad schema: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	url := "mem://tools/" + name + ".json"
	if err := compiler.AddResource(url, bytes.NewReader([]byte(schema))); err != nil {
		panic(fmt.Sprintf("tool %s: add schema resource: %v", name, err))
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("tool %s: compile schema: %v", name, err))
	}

	return &LocalTool{
		Definition: llm.ToolDefinition{Name: name, Description: description, InputSchema: props},
		schema:     compiled,
	}
}

// Validate checks raw tool input against the tool's schema.
func (t *LocalTool) Validate(input json.RawMessage) error {
	var v interface{}
	if err := json.Unmarshal(input, &v); err != nil {
		return fmt.Errorf("input is not valid JSON: %w", err)
	}
	if err := t.schema.Validate(v); err != nil {
		return fmt.Errorf("invalid %s input: %w", t.Definition.Name, err)
	}
	return nil
}

// HighlightDefinition is offered on every turn.
func HighlightDefinition() llm.ToolDefinition { return highlightTool.Definition }

// CitationDefinition is offered only with tool access.
func CitationDefinition() llm.ToolDefinition { return citationTool.Definition }

// HighlightInput is the parsed add_highlight input.
type HighlightInput struct {
	Type          models.HighlightType `json:"type"`
	MatchText     string               `json:"matchText"`
	Comment       string               `json:"comment"`
	SuggestedEdit string               `json:"suggestedEdit"`
}

// ParseHighlight validates and decodes add_highlight input.
func ParseHighlight(input json.RawMessage) (*HighlightInput, error) {
	if err := highlightTool.Validate(input); err != nil {
		return nil, err
	}
	var in HighlightInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("decode %s input: %w", HighlightToolName, err)
	}
	if !in.Type.IsValid() {
		return nil, fmt.Errorf("unknown highlight type %q", in.Type)
	}
	if strings.TrimSpace(in.MatchText) == "" {
		return nil, fmt.Errorf("matchText is empty")
	}
	return &in, nil
}

// ParseCitation validates and decodes cite_source input.
func ParseCitation(input json.RawMessage) (*models.Source, error) {
	if err := citationTool.Validate(input); err != nil {
		return nil, err
	}
	var src models.Source
	if err := json.Unmarshal(input, &src); err != nil {
		return nil, fmt.Errorf("decode %s input: %w", CitationToolName, err)
	}
	if !strings.HasPrefix(src.URL, "http://") && !strings.HasPrefix(src.URL, "https://") {
		return nil, fmt.Errorf("source url must be http(s): %q", src.URL)
	}
	return &src, nil
}

// DecodeInput turns raw tool input into the map form executors take.
// Empty input decodes to an empty map.
func DecodeInput(input json.RawMessage) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if len(bytes.TrimSpace(input)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(input, &out); err != nil {
		return nil, fmt.Errorf("tool input must be a JSON object: %w", err)
	}
	return out, nil
}
