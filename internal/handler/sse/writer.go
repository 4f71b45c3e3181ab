// Package sse frames assistant turn events as server-sent events and
// decodes them again on the client side.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"margin/internal/domain/models"
)

// ErrStreamingUnsupported is returned when the response cannot be flushed
var ErrStreamingUnsupported = errors.New("streaming not supported")

// Writer writes event frames to one response. Send and WriteKeepAlive may be
// called from different goroutines.
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	err     error
}

// Open writes the event-stream headers and returns a writer for the body.
// Nothing is written when the response cannot stream.
func Open(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{w: w, flusher: flusher}, nil
}

// Send writes one event frame and flushes it. After a failed write every
// later call returns the same error.
func (s *Writer) Send(event models.StreamEvent) error {
	frame, err := Frame(event)
	if err != nil {
		return err
	}
	return s.write(frame)
}

// WriteKeepAlive writes an SSE comment frame
func (s *Writer) WriteKeepAlive() error {
	return s.write([]byte(": keepalive\n\n"))
}

func (s *Writer) write(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, err := s.w.Write(b); err != nil {
		s.err = fmt.Errorf("write event stream: %w", err)
		return s.err
	}
	s.flusher.Flush()
	return nil
}

// Frame encodes an event as `event: <name>\ndata: <json>\n\n`.
func Frame(event models.StreamEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event.EventName(), err)
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.EventName(), data)), nil
}
