package sse

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"margin/internal/domain/models"
)

// Decoder turns an event-stream byte stream back into events. Input may be
// split anywhere; incomplete lines are held until the rest arrives.
// Comments, unknown event names and undecodable data lines are skipped.
type Decoder struct {
	buf   []byte
	event string
}

// NewDecoder creates a decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed consumes a chunk and returns the events completed by it
func (d *Decoder) Feed(chunk []byte) []models.StreamEvent {
	d.buf = append(d.buf, chunk...)

	var out []models.StreamEvent
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimSuffix(d.buf[:i], []byte("\r")))
		d.buf = d.buf[i+1:]
		if ev := d.line(line); ev != nil {
			out = append(out, ev)
		}
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return out
}

// Flush processes a trailing line that never got its newline
func (d *Decoder) Flush() []models.StreamEvent {
	if len(d.buf) == 0 {
		return nil
	}
	line := strings.TrimSuffix(string(d.buf), "\r")
	d.buf = nil
	if ev := d.line(line); ev != nil {
		return []models.StreamEvent{ev}
	}
	return nil
}

func (d *Decoder) line(line string) models.StreamEvent {
	switch {
	case line == "":
		d.event = ""
	case strings.HasPrefix(line, ":"):
		// comment
	case strings.HasPrefix(line, "event:"):
		d.event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
	case strings.HasPrefix(line, "data:"):
		if d.event == "" {
			return nil
		}
		data := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
		ev, err := models.DecodeEvent(d.event, []byte(data))
		if err != nil {
			return nil
		}
		return ev
	}
	return nil
}

// Decode reads r to the end, calling fn for each event. It stops early with
// fn's error.
func Decode(r io.Reader, fn func(models.StreamEvent) error) error {
	d := NewDecoder()
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, ev := range d.Feed(buf[:n]) {
				if ferr := fn(ev); ferr != nil {
					return ferr
				}
			}
		}
		if errors.Is(err, io.EOF) {
			for _, ev := range d.Flush() {
				if ferr := fn(ev); ferr != nil {
					return ferr
				}
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}
