package markdown

import (
	"html"
	"regexp"
	"strings"
)

var (
	imagePattern     = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkPattern      = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	autolinkPattern  = regexp.MustCompile(`<((?:https?|mailto):[^>\s]+)>`)
	boldStarPattern  = regexp.MustCompile(`\*\*(\S|\S.*?\S)\*\*`)
	boldUnderPattern = regexp.MustCompile(`__(\S|\S.*?\S)__`)
	italicStar       = regexp.MustCompile(`\*([^*\s](?:[^*\n]*[^*\s])?)\*`)
	italicUnder      = regexp.MustCompile(`(^|[^\p{L}\p{N}_])_([^_\n]+)_($|[^\p{L}\p{N}_])`)
	strikePattern    = regexp.MustCompile(`~~(\S|\S.*?\S)~~`)
	codeDouble       = regexp.MustCompile("``(.+?)``")
	codeSingle       = regexp.MustCompile("`([^`]+)`")

	quotePrefix   = regexp.MustCompile(`^ {0,3}> ?`)
	headingPrefix = regexp.MustCompile(`^ {0,3}#{1,6}(?:[ \t]+|$)`)
	headingClose  = regexp.MustCompile(`[ \t]+#+[ \t]*$`)
	listPrefix    = regexp.MustCompile(`^[ \t]*(?:[-*+]|\d{1,9}[.)])[ \t]+`)
	taskPrefix    = regexp.MustCompile(`^\[[ xX]\][ \t]+`)
	fencePattern  = regexp.MustCompile("^[ \t]*(```+|~~~+)")
	rulePattern   = regexp.MustCompile(`^ {0,3}(?:(?:-[ \t]*){3,}|(?:\*[ \t]*){3,}|(?:_[ \t]*){3,}|=+[ \t]*)$`)
	hardBreakTail = regexp.MustCompile(`(?: {2,}|\\)$`)
	escapePattern = regexp.MustCompile(`\\([!-/:-@\[-\x60{-~])`)

	charRefPattern = regexp.MustCompile(`&(?:#[0-9]{1,7}|#[xX][0-9a-fA-F]{1,6}|[A-Za-z][A-Za-z0-9]{1,31});`)
)

// escapeBase shifts backslash-escaped punctuation into the private use area
// while a line is processed so it never reads as syntax.
const escapeBase = 0xE000

// Strip removes markdown syntax so the result matches the flat text an
// editor shows for the same content: one "\n" between blocks, no markup
// characters, fenced code kept verbatim.
func Strip(md string) string {
	md = strings.ReplaceAll(md, "\r\n", "\n")
	lines := strings.Split(md, "\n")
	out := make([]string, 0, len(lines))

	inFence := false
	fenceMarker := ""
	fenceDepth := 0

	for _, raw := range lines {
		if inFence {
			line := stripQuotes(raw, fenceDepth)
			if isFenceClose(line, fenceMarker) {
				inFence = false
				continue
			}
			out = append(out, line)
			continue
		}

		depth, line := countQuotes(raw)
		if m := fencePattern.FindStringSubmatch(line); m != nil {
			inFence = true
			fenceMarker = m[1]
			fenceDepth = depth
			continue
		}
		if rulePattern.MatchString(line) {
			continue
		}

		line = stripLine(line)
		if strings.TrimSpace(line) == "" {
			continue
		}
		// references decode after the blank check so "&#32;" survives as text
		out = append(out, restoreEscapes(decodeCharRefs(line)))
	}

	return strings.Join(out, "\n")
}

// stripLine removes block prefixes recognised on the source line, then
// inline syntax from what remains. Escaped punctuation is still shifted on
// return.
func stripLine(line string) string {
	body := protectEscapes(line)
	body = stripBlockPrefixes(body)
	body = stripInline(body)
	return hardBreakTail.ReplaceAllString(body, "")
}

func decodeCharRefs(s string) string {
	return charRefPattern.ReplaceAllStringFunc(s, html.UnescapeString)
}

func protectEscapes(s string) string {
	return escapePattern.ReplaceAllStringFunc(s, func(m string) string {
		return string(rune(escapeBase + int(m[1])))
	})
}

func restoreEscapes(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= escapeBase && r < escapeBase+0x80 {
			return r - escapeBase
		}
		return r
	}, s)
}

func stripBlockPrefixes(line string) string {
	for {
		before := line
		if loc := quotePrefix.FindStringIndex(line); loc != nil {
			line = line[loc[1]:]
		}
		if loc := headingPrefix.FindStringIndex(line); loc != nil {
			line = headingClose.ReplaceAllString(line[loc[1]:], "")
		}
		if loc := listPrefix.FindStringIndex(line); loc != nil {
			line = line[loc[1]:]
			if loc := taskPrefix.FindStringIndex(line); loc != nil {
				line = line[loc[1]:]
			}
		}
		if line == before {
			break
		}
	}
	return strings.TrimLeft(line, " \t")
}

// stripInline applies inline transformations in a fixed order: images and
// links, then emphasis, then code spans.
func stripInline(s string) string {
	s = imagePattern.ReplaceAllString(s, "")
	s = linkPattern.ReplaceAllString(s, "$1")
	s = autolinkPattern.ReplaceAllString(s, "$1")

	s = boldStarPattern.ReplaceAllString(s, "$1")
	s = boldUnderPattern.ReplaceAllString(s, "$1")
	s = italicStar.ReplaceAllString(s, "$1")
	// twice: adjacent matches share their boundary character
	s = italicUnder.ReplaceAllString(s, "$1$2$3")
	s = italicUnder.ReplaceAllString(s, "$1$2$3")
	s = strikePattern.ReplaceAllString(s, "$1")

	s = codeDouble.ReplaceAllString(s, "$1")
	s = codeSingle.ReplaceAllString(s, "$1")
	return s
}

func countQuotes(line string) (int, string) {
	depth := 0
	for {
		loc := quotePrefix.FindStringIndex(line)
		if loc == nil {
			return depth, line
		}
		line = line[loc[1]:]
		depth++
	}
}

func stripQuotes(line string, depth int) string {
	for i := 0; i < depth; i++ {
		loc := quotePrefix.FindStringIndex(line)
		if loc == nil {
			break
		}
		line = line[loc[1]:]
	}
	return line
}

func isFenceClose(line, marker string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, marker) && strings.Trim(trimmed, marker[:1]) == ""
}
