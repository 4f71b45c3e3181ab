package models

// PageSlot names one of the fixed buffers of a writing project.
type PageSlot string

const (
	PageBrainstorm PageSlot = "brainstorm"
	PageOutline    PageSlot = "outline"
	PageDraft      PageSlot = "draft"
	PageRevision   PageSlot = "revision"
	PageFinal      PageSlot = "final"
)

// PageSlots lists every slot in display order.
var PageSlots = []PageSlot{PageBrainstorm, PageOutline, PageDraft, PageRevision, PageFinal}

// IsValid reports whether s is a known slot.
func (s PageSlot) IsValid() bool {
	for _, slot := range PageSlots {
		if s == slot {
			return true
		}
	}
	return false
}

// PageFormat is the encoding of submitted page content.
type PageFormat string

const (
	PageFormatMarkdown PageFormat = "markdown"
	PageFormatHTML     PageFormat = "html"
)

// Document is the request-time snapshot of a project's pages.
// It is never mutated by the assistant.
type Document struct {
	Pages     map[PageSlot]string
	ActiveTab PageSlot
	Format    PageFormat
}

// Active returns the content of the active page.
func (d *Document) Active() string {
	return d.Pages[d.ActiveTab]
}
