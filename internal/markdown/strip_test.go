package markdown

import "testing"

func TestStrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Climate change is bad.", "Climate change is bad."},
		{"bold", "This is **bold** text", "This is bold text"},
		{"bold never leaves a star", "**bold**", "bold"},
		{"bold closes at the nearest delimiter", "**a** b **c**", "a b c"},
		{"strike closes at the nearest delimiter", "~~a~~ b ~~c~~", "a b c"},
		{"italic star and underscore", "*one* and _two_", "one and two"},
		{"snake case untouched", "call snake_case_name here", "call snake_case_name here"},
		{"arithmetic stars untouched", "5 * 3 * 2", "5 * 3 * 2"},
		{"strikethrough", "~~gone~~ kept", "gone kept"},
		{"inline code", "run `go test` now", "run go test now"},
		{"link", "see [the docs](https://example.com)", "see the docs"},
		{"bold inside link", "[**strong** link](https://x.y)", "strong link"},
		{"image removed", "before ![alt text](a.png) after", "before  after"},
		{"heading", "## Section title", "Section title"},
		{"closing hashes", "# Title ##", "Title"},
		{"bullet list", "- one\n- two\n* three", "one\ntwo\nthree"},
		{"ordered list", "1. first\n2) second", "first\nsecond"},
		{"task list", "- [x] done\n- [ ] todo", "done\ntodo"},
		{"blockquote", "> quoted *words*\n> more", "quoted words\nmore"},
		{"nested quote and list", "> > - deep", "deep"},
		{"rules removed", "above\n\n---\n\n* * *\n\nbelow", "above\nbelow"},
		{"setext underline removed", "Title\n=====\n\nbody", "Title\nbody"},
		{"blank runs collapse", "a\n\n\n\nb", "a\nb"},
		{"hard break spaces", "line one  \nline two", "line one\nline two"},
		{"hard break backslash", "line one\\\nline two", "line one\nline two"},
		{"escaped punctuation is literal", `\*not italic\* and \# hash`, "*not italic* and # hash"},
		{"escaped backslash at line end", `path C:\\`, `path C:\`},
		{"character references decode", "caf&eacute; &amp; &#x2014; &#65;", "café & — A"},
		{"escaped ampersand stays literal", `\&amp;`, "&amp;"},
		{"unterminated reference untouched", "AT&T and &copy", "AT&T and &copy"},
		{"encoded edge spaces survive", "&#32; indented&#32;", "  indented "},
		{"encoded space line kept", "a\n\n&#32;\n\nb", "a\n \nb"},
		{"fenced code verbatim", "```go\nx := **y**\n\n  z\n```\nafter", "x := **y**\n\n  z\nafter"},
		{"tilde fence", "~~~\n# not heading\n~~~", "# not heading"},
		{"code in quote", "> ```\n> a\n>\n> ```", "a\n"},
		{"crlf", "a\r\n\r\nb", "a\nb"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Strip(tt.in); got != tt.want {
				t.Errorf("Strip(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHTMLConverter_FromHTML(t *testing.T) {
	c := NewHTMLConverter()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"paragraphs", "<p>Climate change is <strong>bad</strong>.</p><p>Second.</p>", "Climate change is bad.\nSecond."},
		{"script removed", "<p>safe</p><script>alert(1)</script>", "safe"},
		{"heading and list", "<h2>Plan</h2><ul><li>one</li><li>two</li></ul>", "Plan\none\ntwo"},
		{"blank", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.FromHTML(tt.in)
			if err != nil {
				t.Fatalf("FromHTML() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("FromHTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
