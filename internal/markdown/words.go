package markdown

import (
	"strings"
	"unicode"
)

// CountWords counts words in markdown after stripping syntax, so
// "**bold** text" is two words and list markers count as none.
func CountWords(md string) int {
	return PlainWords(Strip(md))
}

// PlainWords counts whitespace-separated words in already-plain text.
// Fields made only of punctuation ("-", "...") are not words.
func PlainWords(text string) int {
	n := 0
	for _, field := range strings.FieldsFunc(text, unicode.IsSpace) {
		if strings.IndexFunc(field, isWordRune) >= 0 {
			n++
		}
	}
	return n
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
