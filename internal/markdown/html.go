package markdown

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/microcosm-cc/bluemonday"
)

// HTMLConverter turns editor HTML into markdown in two stages: sanitize,
// then convert. Safe for concurrent use.
type HTMLConverter struct {
	policy    *bluemonday.Policy
	converter *md.Converter
}

// NewHTMLConverter creates a converter with a UGC sanitization policy.
func NewHTMLConverter() *HTMLConverter {
	return &HTMLConverter{
		policy:    bluemonday.UGCPolicy(),
		converter: md.NewConverter("", true, &md.Options{
			HeadingStyle:     "atx",
			BulletListMarker: "-",
			CodeBlockStyle:   "fenced",
			Fence:            "```",
			EmDelimiter:      "*",
			StrongDelimiter:  "**",
		}),
	}
}

// ToMarkdown sanitizes html and converts it to markdown.
func (c *HTMLConverter) ToMarkdown(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}
	sanitized := c.policy.Sanitize(html)

	out, err := c.converter.ConvertString(sanitized)
	if err != nil {
		return "", fmt.Errorf("convert html to markdown: %w", err)
	}
	return out, nil
}

// FromHTML converts an HTML page to the same plain text Strip produces for
// its markdown form.
func (c *HTMLConverter) FromHTML(html string) (string, error) {
	out, err := c.ToMarkdown(html)
	if err != nil {
		return "", err
	}
	return Strip(out), nil
}
