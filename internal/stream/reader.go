package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tjfontaine/rx-inference-gateway/internal/domain"
)

const maxRecordSize = 4 * 1024 * 1024

// Reader decodes records written by a Framer. It buffers across arbitrary
// read boundaries and only yields complete records.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader creates a reader over r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
	scanner.Split(splitRecords)
	return &Reader{scanner: scanner}
}

// Next returns the next event. It returns io.EOF after the last complete
// record and io.ErrUnexpectedEOF if the input ends inside a record.
func (r *Reader) Next() (*domain.StreamEvent, error) {
	for r.scanner.Scan() {
		payload := recordData(r.scanner.Bytes())
		if payload == nil {
			continue // comment or keep-alive record
		}
		var ev domain.StreamEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("stream: decode record: %w", err)
		}
		return &ev, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Collect reads every event until the end of r.
func Collect(r io.Reader) ([]domain.StreamEvent, error) {
	reader := NewReader(r)
	var events []domain.StreamEvent
	for {
		ev, err := reader.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, *ev)
	}
}

// splitRecords is a bufio.SplitFunc yielding one record per blank-line
// terminated block. CRLF line endings are accepted.
func splitRecords(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(bytes.TrimSpace(data)) == 0 {
		return len(data), nil, nil
	}
	lf := bytes.Index(data, []byte("\n\n"))
	crlf := bytes.Index(data, []byte("\r\n\r\n"))
	switch {
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return crlf + 4, data[:crlf], nil
	case lf >= 0:
		return lf + 2, data[:lf], nil
	}
	if atEOF {
		return 0, nil, io.ErrUnexpectedEOF
	}
	return 0, nil, nil
}

// recordData joins the data lines of a record. Returns nil when the record
// carries no data field.
func recordData(record []byte) []byte {
	var out []byte
	found := false
	for _, line := range bytes.Split(record, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		value := bytes.TrimPrefix(line[len("data:"):], []byte(" "))
		if found {
			out = append(out, '\n')
		}
		out = append(out, value...)
		found = true
	}
	if !found {
		return nil
	}
	return out
}
