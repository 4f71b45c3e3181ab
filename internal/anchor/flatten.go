package anchor

import (
	"sort"
	"strings"
)

// TextRun maps a span of flat text back onto the document.
// Start and End are byte offsets into FlatText.Text; Pos is the ProseMirror
// position of the run's first character.
type TextRun struct {
	Start int
	End   int
	Pos   int
}

// FlatText is the plain-text projection of a document. Block boundaries
// appear as single "\n" separators which belong to no run.
type FlatText struct {
	Text string
	Runs []TextRun
}

// Flatten walks the document in order and projects it to plain text.
// Every textblock after the first non-empty one is preceded by exactly one
// newline. Hard breaks behave like block separators; images and rules
// contribute nothing.
func Flatten(doc *Node) FlatText {
	f := &flattener{}
	if doc != nil {
		if doc.Type == TypeDoc {
			f.walkChildren(doc.Content, 0)
		} else {
			f.walk(doc, 0)
		}
	}
	return FlatText{Text: f.b.String(), Runs: f.runs}
}

type flattener struct {
	b       strings.Builder
	runs    []TextRun
	pending bool
}

func (f *flattener) walkChildren(children []*Node, pos int) {
	for _, child := range children {
		if child == nil {
			continue
		}
		f.walk(child, pos)
		pos += child.size()
	}
}

func (f *flattener) walk(n *Node, pos int) {
	switch {
	case n.Type == TypeText:
		f.appendText(n.Text, pos)
	case n.Type == TypeHardBreak:
		f.separate()
	case n.isLeaf():
		// images and rules have no text
	default:
		if n.isTextblock() {
			f.separate()
		}
		f.walkChildren(n.Content, pos+1)
		if n.isTextblock() {
			f.separate()
		}
	}
}

// separate requests a newline before the next text, collapsing repeats.
func (f *flattener) separate() {
	if f.b.Len() > 0 {
		f.pending = true
	}
}

func (f *flattener) appendText(text string, pos int) {
	if text == "" {
		return
	}
	if f.pending {
		f.b.WriteByte('\n')
		f.pending = false
	}
	start := f.b.Len()
	f.b.WriteString(text)
	f.runs = append(f.runs, TextRun{Start: start, End: f.b.Len(), Pos: pos})
}

// Resolve maps a flat offset to a document position. Separator newlines and
// offsets past the end do not resolve.
func (ft FlatText) Resolve(offset int) (int, bool) {
	i := sort.Search(len(ft.Runs), func(i int) bool { return ft.Runs[i].End > offset })
	if i == len(ft.Runs) || offset < ft.Runs[i].Start {
		return 0, false
	}
	return ft.position(ft.Runs[i], offset), true
}

// resolveStart resolves the start of a range, moving forward past separators.
func (ft FlatText) resolveStart(offset int) (int, bool) {
	i := sort.Search(len(ft.Runs), func(i int) bool { return ft.Runs[i].End > offset })
	if i == len(ft.Runs) {
		return 0, false
	}
	run := ft.Runs[i]
	if offset < run.Start {
		return run.Pos, true
	}
	return ft.position(run, offset), true
}

// resolveEnd resolves the exclusive end of a range, moving back past separators.
func (ft FlatText) resolveEnd(offset int) (int, bool) {
	i := sort.Search(len(ft.Runs), func(i int) bool { return ft.Runs[i].Start >= offset })
	if i == 0 {
		return 0, false
	}
	run := ft.Runs[i-1]
	if offset > run.End {
		offset = run.End
	}
	return ft.position(run, offset), true
}

func (ft FlatText) position(run TextRun, offset int) int {
	return run.Pos + utf16Offset(ft.Text[run.Start:run.End], offset-run.Start)
}
