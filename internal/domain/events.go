package domain

// StreamEventType identifies the type of streaming event.
type StreamEventType string

const (
	EventTypeMetadata StreamEventType = "metadata"
	EventTypeChunk    StreamEventType = "chunk"
	EventTypeDone     StreamEventType = "done"
	EventTypeError    StreamEventType = "error"
)

// IsTerminal returns true for events that end a stream.
func (t StreamEventType) IsTerminal() bool {
	return t == EventTypeDone || t == EventTypeError
}

// StreamEvent is one record of the incremental response sequence.
type StreamEvent struct {
	Type StreamEventType `json:"type"`

	// Metadata fields. Filename and ThreadID are echoed on terminal events too.
	Filename  string `json:"filename,omitempty"`
	FileType  string `json:"fileType,omitempty"`
	FileSize  int64  `json:"fileSize,omitempty"`
	ThreadID  string `json:"threadId,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`

	// Content is the literal text of a chunk.
	Content string `json:"content,omitempty"`

	// Error and Code describe a failure event.
	Error string `json:"error,omitempty"`
	Code  Kind   `json:"code,omitempty"`
}

// Fragment is one unit produced by a provider stream: either a text delta or
// a terminal error. A fragment with Err set is the last one on its channel.
type Fragment struct {
	Text string
	Err  error
}
