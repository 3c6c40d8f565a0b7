// Package stream frames an in-progress answer as a strictly ordered sequence
// of typed records delivered over a long-lived HTTP response.
//
// Each record is a single `data: <json>` line followed by a blank line, the
// same framing as Server-Sent Events. Readers resynchronize by buffering until
// the blank line that terminates a record.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tjfontaine/rx-inference-gateway/internal/domain"
)

// TimestampFormat matches the millisecond ISO-8601 timestamps callers expect.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

var (
	// ErrOutOfOrder is returned when an event would violate the record order.
	ErrOutOfOrder = errors.New("stream: event out of order")

	// ErrTerminated is returned for any write after the terminal event.
	ErrTerminated = errors.New("stream: already terminated")
)

type frameState int

const (
	stateIdle frameState = iota
	stateOpen
	stateTerminated
)

// SetHeaders sets the response headers of a framed stream.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}

// Framer writes events in order: exactly one metadata record first, any
// number of chunks, and exactly one terminal record (done or error) last.
// A Framer is used by a single goroutine.
type Framer struct {
	w       io.Writer
	flusher http.Flusher
	now     func() time.Time
	state   frameState
	echo    domain.StreamEvent
	chunks  int
}

// NewFramer creates a framer writing to w. If w implements http.Flusher every
// record is flushed as soon as it is written.
func NewFramer(w io.Writer) *Framer {
	f := &Framer{
		w:   w,
		now: time.Now,
	}
	if fl, ok := w.(http.Flusher); ok {
		f.flusher = fl
	}
	return f
}

// Chunks returns how many chunk records were written.
func (f *Framer) Chunks() int {
	return f.chunks
}

// Terminated reports whether a done or error record was written.
func (f *Framer) Terminated() bool {
	return f.state == stateTerminated
}

func (f *Framer) timestamp() string {
	return f.now().UTC().Format(TimestampFormat)
}

func (f *Framer) write(ev domain.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("stream: marshal %s event: %w", ev.Type, err)
	}
	if _, err := fmt.Fprintf(f.w, "data: %s\n\n", data); err != nil {
		return err
	}
	if f.flusher != nil {
		f.flusher.Flush()
	}
	return nil
}

// Metadata writes the opening record. Filename and ThreadID are remembered and
// echoed on the terminal record.
func (f *Framer) Metadata(meta domain.StreamEvent) error {
	if f.state != stateIdle {
		return ErrOutOfOrder
	}
	meta.Type = domain.EventTypeMetadata
	meta.Content, meta.Error, meta.Code = "", "", ""
	if meta.Timestamp == "" {
		meta.Timestamp = f.timestamp()
	}
	f.state = stateOpen
	f.echo = domain.StreamEvent{Filename: meta.Filename, ThreadID: meta.ThreadID}
	return f.write(meta)
}

// Chunk writes one fragment's literal text.
func (f *Framer) Chunk(text string) error {
	switch f.state {
	case stateIdle:
		return ErrOutOfOrder
	case stateTerminated:
		return ErrTerminated
	}
	f.chunks++
	return f.write(domain.StreamEvent{Type: domain.EventTypeChunk, Content: text})
}

// Done writes the successful terminal record.
func (f *Framer) Done() error {
	if err := f.terminate(); err != nil {
		return err
	}
	ev := f.echo
	ev.Type = domain.EventTypeDone
	ev.Timestamp = f.timestamp()
	return f.write(ev)
}

// Fail writes the error terminal record. The message and code come from the
// canonical error, never from the raw cause.
func (f *Framer) Fail(cause error) error {
	if err := f.terminate(); err != nil {
		return err
	}
	apiErr := domain.ToAPIError(cause)
	ev := f.echo
	ev.Type = domain.EventTypeError
	ev.Error = apiErr.Message
	ev.Code = apiErr.Kind
	ev.Timestamp = f.timestamp()
	return f.write(ev)
}

func (f *Framer) terminate() error {
	switch f.state {
	case stateIdle:
		return ErrOutOfOrder
	case stateTerminated:
		return ErrTerminated
	}
	f.state = stateTerminated
	return nil
}
