package anchor

import "strings"

// Location is the document range of a located substring. From and To are
// ProseMirror positions; To is exclusive.
type Location struct {
	Found bool `json:"found"`
	From  int  `json:"from"`
	To    int  `json:"to"`
}

// Locate finds the first case-sensitive, exact occurrence of matchText in
// the document's flat text. A miss is not an error: callers drop the
// annotation.
func Locate(doc *Node, matchText string) Location {
	return Flatten(doc).Locate(matchText)
}

// Locate is Locate against an already flattened document.
func (ft FlatText) Locate(matchText string) Location {
	if matchText == "" {
		return Location{}
	}
	idx := strings.Index(ft.Text, matchText)
	if idx < 0 {
		return Location{}
	}

	from, ok := ft.resolveStart(idx)
	if !ok {
		return Location{}
	}
	to, ok := ft.resolveEnd(idx + len(matchText))
	if !ok || to <= from {
		// zero-length or inverted once separators are skipped
		return Location{}
	}
	return Location{Found: true, From: from, To: to}
}
