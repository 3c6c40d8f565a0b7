package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/tjfontaine/rx-inference-gateway/internal/domain"
)

func fixedClock(f *Framer) {
	f.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 8_000_000, time.UTC) }
}

func fragments(texts ...string) StartFunc {
	return func(ctx context.Context) (<-chan domain.Fragment, error) {
		ch := make(chan domain.Fragment)
		go func() {
			defer close(ch)
			for _, text := range texts {
				select {
				case ch <- domain.Fragment{Text: text}:
				case <-ctx.Done():
					return
				}
			}
		}()
		return ch, nil
	}
}

// assertShape checks one metadata first, one terminal last and only chunks between.
func assertShape(t *testing.T, events []domain.StreamEvent, terminal domain.StreamEventType) {
	t.Helper()
	if len(events) < 2 {
		t.Fatalf("got %d events, want at least 2", len(events))
	}
	if events[0].Type != domain.EventTypeMetadata {
		t.Errorf("first event = %s, want metadata", events[0].Type)
	}
	if last := events[len(events)-1]; last.Type != terminal {
		t.Errorf("last event = %s, want %s", last.Type, terminal)
	}
	for i, ev := range events[1 : len(events)-1] {
		if ev.Type != domain.EventTypeChunk {
			t.Errorf("event %d = %s, want chunk", i+1, ev.Type)
		}
	}
}

func concat(events []domain.StreamEvent) string {
	var b strings.Builder
	for _, ev := range events {
		if ev.Type == domain.EventTypeChunk {
			b.WriteString(ev.Content)
		}
	}
	return b.String()
}

func TestFramer_WireFormat(t *testing.T) {
	var buf bytes.Buffer
	f := NewFramer(&buf)
	fixedClock(f)

	f.Metadata(domain.StreamEvent{Filename: "rx.png", FileType: "image/png"})
	f.Chunk("Hello ")
	f.Done()

	want := `data: {"type":"metadata","filename":"rx.png","fileType":"image/png","timestamp":"2026-03-04T05:06:07.008Z"}` + "\n\n" +
		`data: {"type":"chunk","content":"Hello "}` + "\n\n" +
		`data: {"type":"done","filename":"rx.png","timestamp":"2026-03-04T05:06:07.008Z"}` + "\n\n"
	if buf.String() != want {
		t.Errorf("wire output mismatch\n got: %q\nwant: %q", buf.String(), want)
	}
}

func TestFramer_Order(t *testing.T) {
	f := NewFramer(io.Discard)

	if err := f.Chunk("early"); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("Chunk before metadata = %v, want ErrOutOfOrder", err)
	}
	if err := f.Done(); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("Done before metadata = %v, want ErrOutOfOrder", err)
	}

	if err := f.Metadata(domain.StreamEvent{ThreadID: "t1"}); err != nil {
		t.Fatal(err)
	}
	if err := f.Metadata(domain.StreamEvent{}); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("second metadata = %v, want ErrOutOfOrder", err)
	}
	if err := f.Fail(errors.New("boom")); err != nil {
		t.Fatal(err)
	}
	if err := f.Done(); !errors.Is(err, ErrTerminated) {
		t.Errorf("Done after Fail = %v, want ErrTerminated", err)
	}
	if err := f.Chunk("late"); !errors.Is(err, ErrTerminated) {
		t.Errorf("Chunk after Fail = %v, want ErrTerminated", err)
	}
	if !f.Terminated() {
		t.Error("Terminated() = false")
	}
}

func TestFramer_FlushesEveryRecord(t *testing.T) {
	rec := httptest.NewRecorder()
	f := NewFramer(rec)
	f.Metadata(domain.StreamEvent{})
	if !rec.Flushed {
		t.Error("metadata was not flushed")
	}
}

func TestPump_Success(t *testing.T) {
	var buf bytes.Buffer
	err := Pump(context.Background(), NewFramer(&buf), domain.StreamEvent{ThreadID: "t-1"}, fragments("Take ", "one ", "daily."))
	if err != nil {
		t.Fatalf("Pump() error = %v", err)
	}

	events, err := Collect(&buf)
	if err != nil {
		t.Fatal(err)
	}
	assertShape(t, events, domain.EventTypeDone)
	if got := concat(events); got != "Take one daily." {
		t.Errorf("content = %q", got)
	}
	if events[len(events)-1].ThreadID != "t-1" {
		t.Error("done record should echo the thread id")
	}
}

func TestPump_ZeroChunks(t *testing.T) {
	var buf bytes.Buffer
	if err := Pump(context.Background(), NewFramer(&buf), domain.StreamEvent{}, fragments("", "")); err != nil {
		t.Fatal(err)
	}
	events, _ := Collect(&buf)
	if len(events) != 2 {
		t.Fatalf("got %d events, want metadata and done only", len(events))
	}
	assertShape(t, events, domain.EventTypeDone)
}

func TestPump_MetadataBeforeStart(t *testing.T) {
	var buf bytes.Buffer
	var sawMetadata bool
	start := func(ctx context.Context) (<-chan domain.Fragment, error) {
		sawMetadata = strings.Contains(buf.String(), `"type":"metadata"`)
		return fragments("x")(ctx)
	}
	Pump(context.Background(), NewFramer(&buf), domain.StreamEvent{}, start)
	if !sawMetadata {
		t.Error("metadata must be written before the remote call starts")
	}
}

func TestPump_StartError(t *testing.T) {
	var buf bytes.Buffer
	quota := domain.ErrQuotaExceeded("API quota exceeded. Please try again later.")
	start := func(ctx context.Context) (<-chan domain.Fragment, error) { return nil, quota }

	err := Pump(context.Background(), NewFramer(&buf), domain.StreamEvent{Filename: "rx.pdf"}, start)
	if !errors.Is(err, quota) {
		t.Errorf("Pump() error = %v, want quota error", err)
	}

	events, _ := Collect(&buf)
	assertShape(t, events, domain.EventTypeError)
	last := events[len(events)-1]
	if last.Code != domain.KindQuotaExceeded || last.Error != quota.Message || last.Filename != "rx.pdf" {
		t.Errorf("unexpected error record: %+v", last)
	}
}

func TestPump_MidStreamError(t *testing.T) {
	var buf bytes.Buffer
	start := func(ctx context.Context) (<-chan domain.Fragment, error) {
		ch := make(chan domain.Fragment, 3)
		ch <- domain.Fragment{Text: "partial"}
		ch <- domain.Fragment{Err: errors.New("connection reset")}
		close(ch)
		return ch, nil
	}

	if err := Pump(context.Background(), NewFramer(&buf), domain.StreamEvent{}, start); err == nil {
		t.Fatal("expected error")
	}

	events, _ := Collect(&buf)
	assertShape(t, events, domain.EventTypeError)
	for _, ev := range events {
		if ev.Type == domain.EventTypeDone {
			t.Error("done must never follow an error")
		}
	}
	if strings.Contains(buf.String(), "connection reset") {
		t.Error("raw cause leaked into the error record")
	}
}

func TestPump_Deadline(t *testing.T) {
	var buf bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := func(ctx context.Context) (<-chan domain.Fragment, error) {
		return make(chan domain.Fragment), nil // never produces
	}

	err := Pump(ctx, NewFramer(&buf), domain.StreamEvent{}, start)
	if domain.KindOf(err) != domain.KindUpstreamUnavailable {
		t.Errorf("Pump() error = %v, want upstream_unavailable", err)
	}
	events, _ := Collect(&buf)
	assertShape(t, events, domain.EventTypeError)
}

type failingWriter struct {
	after int
	n     int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.n++
	if w.n > w.after {
		return 0, errors.New("broken pipe")
	}
	return len(p), nil
}

func TestPump_ClientGoneCancelsDraw(t *testing.T) {
	released := make(chan struct{})
	start := func(ctx context.Context) (<-chan domain.Fragment, error) {
		ch := make(chan domain.Fragment)
		go func() {
			defer close(released)
			defer close(ch)
			for {
				select {
				case ch <- domain.Fragment{Text: "more "}:
				case <-ctx.Done():
					return
				}
			}
		}()
		return ch, nil
	}

	// metadata and two chunks succeed, then the connection breaks
	err := Pump(context.Background(), NewFramer(&failingWriter{after: 3}), domain.StreamEvent{}, start)
	if !errors.Is(err, ErrClientGone) {
		t.Errorf("Pump() error = %v, want ErrClientGone", err)
	}

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("remote draw was not abandoned after the client left")
	}
}

func TestReader_PartialReads(t *testing.T) {
	var buf bytes.Buffer
	Pump(context.Background(), NewFramer(&buf), domain.StreamEvent{Filename: "a.png"}, fragments("multi\nline ", "text with \"quotes\""))

	events, err := Collect(iotest.OneByteReader(bytes.NewReader(buf.Bytes())))
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	assertShape(t, events, domain.EventTypeDone)
	if got := concat(events); got != "multi\nline text with \"quotes\"" {
		t.Errorf("content = %q", got)
	}
}

func TestReader_TruncatedRecord(t *testing.T) {
	r := NewReader(strings.NewReader("data: {\"type\":\"metadata\"}\n\ndata: {\"type\":\"chu"))

	ev, err := r.Next()
	if err != nil || ev.Type != domain.EventTypeMetadata {
		t.Fatalf("first Next() = %+v, %v", ev, err)
	}
	if _, err := r.Next(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("second Next() error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestReader_SkipsCommentsAndCRLF(t *testing.T) {
	input := ": keep-alive\n\ndata: {\"type\":\"chunk\",\"content\":\"a\"}\r\n\r\n"
	events, err := Collect(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Content != "a" {
		t.Errorf("events = %+v", events)
	}
}

func TestReader_MixedLineEndings(t *testing.T) {
	input := "data: {\"type\":\"chunk\",\"content\":\"a\"}\r\n\r\n" +
		"data: {\"type\":\"chunk\",\"content\":\"b\"}\n\n"
	events, err := Collect(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].Content != "a" || events[1].Content != "b" {
		t.Errorf("events = %+v", events)
	}
}
