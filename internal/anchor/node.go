package anchor

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Node is a TipTap/ProseMirror JSON node as produced by editor.getJSON().
type Node struct {
	Type    string                 `json:"type"`
	Attrs   map[string]interface{} `json:"attrs,omitempty"`
	Content []*Node                `json:"content,omitempty"`
	Text    string                 `json:"text,omitempty"`
	Marks   []Mark                 `json:"marks,omitempty"`
}

// Mark is an inline formatting mark on a text node (bold, italic, link, ...).
type Mark struct {
	Type  string                 `json:"type"`
	Attrs map[string]interface{} `json:"attrs,omitempty"`
}

// Node types with special handling. Anything not listed is treated as a
// container that contributes only through its children.
const (
	TypeDoc            = "doc"
	TypeText           = "text"
	TypeParagraph      = "paragraph"
	TypeHeading        = "heading"
	TypeCodeBlock      = "codeBlock"
	TypeBlockquote     = "blockquote"
	TypeBulletList     = "bulletList"
	TypeOrderedList    = "orderedList"
	TypeListItem       = "listItem"
	TypeHorizontalRule = "horizontalRule"
	TypeHardBreak      = "hardBreak"
	TypeImage          = "image"
)

// Parse decodes editor JSON into a document tree.
func Parse(data []byte) (*Node, error) {
	var doc Node
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if doc.Type == "" {
		doc.Type = TypeDoc
	}
	return &doc, nil
}

// isTextblock reports whether the node holds inline content directly.
func (n *Node) isTextblock() bool {
	switch n.Type {
	case TypeParagraph, TypeHeading, TypeCodeBlock:
		return true
	}
	return false
}

// isLeaf reports whether the node is an atom (size 1, no content).
func (n *Node) isLeaf() bool {
	switch n.Type {
	case TypeHardBreak, TypeImage, TypeHorizontalRule:
		return true
	}
	return false
}

// size returns the node's size in ProseMirror position units.
// Text length is measured in UTF-16 code units to match the editor.
func (n *Node) size() int {
	if n.Type == TypeText {
		return utf16Len(n.Text)
	}
	if n.isLeaf() {
		return 1
	}
	total := 2
	for _, child := range n.Content {
		total += child.size()
	}
	return total
}

func (n *Node) attrString(key string) string {
	v, _ := n.Attrs[key].(string)
	return v
}

func (n *Node) attrInt(key string, def int) int {
	switch v := n.Attrs[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// utf16Offset converts a byte offset within s into UTF-16 code units.
func utf16Offset(s string, byteOffset int) int {
	if byteOffset > len(s) {
		byteOffset = len(s)
	}
	n := 0
	for i := 0; i < byteOffset; {
		r, w := utf8.DecodeRuneInString(s[i:])
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
		i += w
	}
	return n
}
