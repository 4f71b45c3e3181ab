package anchor

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	textEscaper = strings.NewReplacer(
		`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "~", `\~`,
		"[", `\[`, "]", `\]`, "<", `\<`, "#", `\#`, "&", `\&`,
	)
	urlEscaper    = strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	orderedMarker = regexp.MustCompile(`^\d+[.)]`)
	backtickRun   = regexp.MustCompile("`+")
)

// ToMarkdown renders a document as markdown. Block nodes are separated by a
// blank line, list items are tight, and hard breaks use trailing spaces.
// Text is escaped so that markdown.Strip of the result equals the text
// Flatten produces.
func ToMarkdown(doc *Node) string {
	if doc == nil {
		return ""
	}
	children := doc.Content
	if doc.Type != TypeDoc {
		children = []*Node{doc}
	}
	return strings.TrimRight(renderBlocks(children, "\n\n"), "\n")
}

func renderBlocks(nodes []*Node, sep string) string {
	parts := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if node == nil {
			continue
		}
		parts = append(parts, renderBlock(node))
	}
	return strings.Join(parts, sep)
}

func renderBlock(node *Node) string {
	switch node.Type {
	case TypeHeading:
		level := node.attrInt("level", 1)
		if level < 1 || level > 6 {
			level = 1
		}
		return strings.Repeat("#", level) + " " + renderInline(node.Content)
	case TypeParagraph:
		return renderInline(node.Content)
	case TypeBulletList:
		items := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			items = append(items, renderListItem(item, "- "))
		}
		return strings.Join(items, "\n")
	case TypeOrderedList:
		start := node.attrInt("start", 1)
		items := make([]string, 0, len(node.Content))
		for i, item := range node.Content {
			items = append(items, renderListItem(item, fmt.Sprintf("%d. ", start+i)))
		}
		return strings.Join(items, "\n")
	case TypeCodeBlock:
		return renderCodeBlock(node)
	case TypeBlockquote:
		return prefixLines(renderBlocks(node.Content, "\n\n"), "> ", ">")
	case TypeHorizontalRule:
		return "---"
	case TypeImage:
		return renderImage(node)
	default:
		// unknown containers: render their children
		return renderBlocks(node.Content, "\n\n")
	}
}

func renderListItem(item *Node, marker string) string {
	body := renderBlocks(item.Content, "\n")
	indent := strings.Repeat(" ", len(marker))
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if i == 0 {
			lines[i] = marker + line
		} else if line != "" {
			lines[i] = indent + line
		}
	}
	return strings.Join(lines, "\n")
}

func renderCodeBlock(node *Node) string {
	var text strings.Builder
	for _, child := range node.Content {
		text.WriteString(child.Text)
	}

	// the fence must outrun any backtick run in the body
	fence := 3
	for _, run := range backtickRun.FindAllString(text.String(), -1) {
		if len(run) >= fence {
			fence = len(run) + 1
		}
	}

	var b strings.Builder
	b.WriteString(strings.Repeat("`", fence))
	b.WriteString(node.attrString("language"))
	b.WriteString("\n")
	if text.Len() > 0 {
		b.WriteString(text.String())
		b.WriteString("\n")
	}
	b.WriteString(strings.Repeat("`", fence))
	return b.String()
}

func renderImage(node *Node) string {
	return fmt.Sprintf("![%s](%s)", textEscaper.Replace(node.attrString("alt")), urlEscaper.Replace(node.attrString("src")))
}

// renderInline renders a textblock's inline content. Hard breaks and
// newlines inside text both become trailing-space breaks.
func renderInline(nodes []*Node) string {
	lines := []string{""}
	for _, node := range nodes {
		switch node.Type {
		case TypeText:
			for i, part := range strings.Split(node.Text, "\n") {
				if i > 0 {
					lines = append(lines, "")
				}
				last := len(lines) - 1
				lines[last] = appendInline(lines[last], applyMarks(part, node.Marks))
			}
		case TypeHardBreak:
			lines = append(lines, "")
		case TypeImage:
			lines[len(lines)-1] += renderImage(node)
		}
	}
	for i, line := range lines {
		lines[i] = guardLine(line)
	}
	return strings.Join(lines, "  \n")
}

// appendInline escapes a trailing "!" that would turn a following link into
// an image.
func appendInline(line, piece string) string {
	if strings.HasPrefix(piece, "[") && strings.HasSuffix(line, "!") {
		line = line[:len(line)-1] + `\!`
	}
	return line + piece
}

// guardLine keeps a rendered line from opening a block construct and
// encodes edge whitespace as character references, since markdown trims it.
func guardLine(line string) string {
	if line == "" {
		return line
	}
	switch line[0] {
	case '-', '+', '>', '=':
		line = `\` + line
	default:
		if loc := orderedMarker.FindStringIndex(line); loc != nil {
			line = line[:loc[1]-1] + `\` + line[loc[1]-1:]
		}
	}
	if r, size := utf8.DecodeRuneInString(line); unicode.IsSpace(r) {
		line = charRef(r) + line[size:]
	}
	if r, size := utf8.DecodeLastRuneInString(line); unicode.IsSpace(r) {
		line = line[:len(line)-size] + charRef(r)
	}
	return line
}

func charRef(r rune) string {
	return fmt.Sprintf("&#%d;", r)
}

// applyMarks escapes text and wraps it in mark syntax. Links always wrap
// outermost. Edge whitespace stays outside the delimiters, where emphasis
// would not close.
func applyMarks(text string, marks []Mark) string {
	core := strings.TrimFunc(text, unicode.IsSpace)
	if core == "" {
		return text
	}
	start := strings.Index(text, core)
	lead, trail := text[:start], text[start+len(core):]

	var wrappers []string
	href := ""
	isLink := false

	for _, mark := range marks {
		switch mark.Type {
		case "bold":
			wrappers = append([]string{"**"}, wrappers...)
		case "italic":
			wrappers = append([]string{"*"}, wrappers...)
		case "code":
			wrappers = append([]string{"`"}, wrappers...)
		case "strike":
			wrappers = append([]string{"~~"}, wrappers...)
		case "link":
			isLink = true
			href, _ = mark.Attrs["href"].(string)
		}
	}

	result := textEscaper.Replace(core)
	for _, wrapper := range wrappers {
		result = wrapper + result + wrapper
	}
	if isLink {
		result = "[" + result + "](" + urlEscaper.Replace(href) + ")"
	}
	return lead + result + trail
}

func prefixLines(s, prefix, emptyPrefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line == "" {
			lines[i] = emptyPrefix
		} else {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
