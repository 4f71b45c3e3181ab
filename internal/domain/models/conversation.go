package models

import "time"

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationMessage is one entry of a project's append-only conversation.
type ConversationMessage struct {
	ID         string      `json:"id"`
	ProjectID  string      `json:"projectId"`
	UserID     string      `json:"-"`
	Role       Role        `json:"role"`
	Content    string      `json:"content"`
	Highlights []Highlight `json:"highlights,omitempty"`
	Sources    []Source    `json:"sources,omitempty"`
	CreatedAt  time.Time   `json:"timestamp"`
}

// HighlightType is the kind of annotation.
type HighlightType string

const (
	HighlightQuestion   HighlightType = "question"
	HighlightSuggestion HighlightType = "suggestion"
	HighlightEdit       HighlightType = "edit"
	HighlightVoice      HighlightType = "voice"
	HighlightWeakness   HighlightType = "weakness"
	HighlightEvidence   HighlightType = "evidence"
	HighlightWordiness  HighlightType = "wordiness"
	HighlightFactcheck  HighlightType = "factcheck"
)

// HighlightTypes lists the allowed annotation kinds.
var HighlightTypes = []HighlightType{
	HighlightQuestion, HighlightSuggestion, HighlightEdit, HighlightVoice,
	HighlightWeakness, HighlightEvidence, HighlightWordiness, HighlightFactcheck,
}

// IsValid reports whether t is one of the allowed kinds.
func (t HighlightType) IsValid() bool {
	for _, ht := range HighlightTypes {
		if t == ht {
			return true
		}
	}
	return false
}

// Highlight is an annotation anchored to a literal text span.
// MatchText is checked against the page when emitted and never again.
type Highlight struct {
	ID            string        `json:"id"`
	Type          HighlightType `json:"type"`
	MatchText     string        `json:"matchText"`
	Comment       string        `json:"comment"`
	SuggestedEdit string        `json:"suggestedEdit,omitempty"`
	Dismissed     bool          `json:"dismissed"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// Source is an external reference cited by the assistant.
type Source struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}
