package models

import (
	"encoding/json"
	"fmt"
)

// Stream event names
const (
	EventText       = "text"
	EventHighlight  = "highlight"
	EventSource     = "source"
	EventToolStatus = "tool_status"
	EventDone       = "done"
	EventError      = "error"
)

// Tool status values
const (
	ToolStatusRunning = "running"
	ToolStatusDone    = "done"
	ToolStatusError   = "error"
)

// StreamEvent is one orchestrator event. The payload serializes as the frame data.
type StreamEvent interface {
	EventName() string
}

type TextEvent struct {
	Chunk string `json:"chunk"`
}

type HighlightEvent struct {
	ID            string        `json:"id"`
	Type          HighlightType `json:"type"`
	MatchText     string        `json:"matchText"`
	Comment       string        `json:"comment"`
	SuggestedEdit string        `json:"suggestedEdit,omitempty"`
}

type SourceEvent struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type ToolStatusEvent struct {
	Tool   string `json:"tool"`
	Server string `json:"server"`
	Status string `json:"status"` // running, done, error
}

type DoneEvent struct {
	MessageID string `json:"messageId"`
}

type ErrorEvent struct {
	Error string `json:"error"`
}

func (TextEvent) EventName() string       { return EventText }
func (HighlightEvent) EventName() string  { return EventHighlight }
func (SourceEvent) EventName() string     { return EventSource }
func (ToolStatusEvent) EventName() string { return EventToolStatus }
func (DoneEvent) EventName() string       { return EventDone }
func (ErrorEvent) EventName() string      { return EventError }

// NewHighlightEvent builds the wire payload for h.
func NewHighlightEvent(h Highlight) HighlightEvent {
	return HighlightEvent{
		ID:            h.ID,
		Type:          h.Type,
		MatchText:     h.MatchText,
		Comment:       h.Comment,
		SuggestedEdit: h.SuggestedEdit,
	}
}

// DecodeEvent parses a frame's data for the named event.
func DecodeEvent(name string, data []byte) (StreamEvent, error) {
	var ev StreamEvent
	var err error
	switch name {
	case EventText:
		var e TextEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case EventHighlight:
		var e HighlightEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case EventSource:
		var e SourceEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case EventToolStatus:
		var e ToolStatusEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case EventDone:
		var e DoneEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case EventError:
		var e ErrorEvent
		err = json.Unmarshal(data, &e)
		ev = e
	default:
		return nil, fmt.Errorf("unknown event %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s event: %w", name, err)
	}
	return ev, nil
}
