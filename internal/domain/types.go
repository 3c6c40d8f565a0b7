package domain

// Role identifies the author of a message in a prompt.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Supported media types for uploaded documents.
const (
	MediaTypePNG  = "image/png"
	MediaTypeJPEG = "image/jpeg"
	MediaTypeGIF  = "image/gif"
	MediaTypeWebP = "image/webp"
	MediaTypePDF  = "application/pdf"
)

// Document is an uploaded file that passed validation.
// It lives for the duration of one request and is never persisted.
type Document struct {
	Name      string
	Size      int64
	MediaType string
	Data      []byte
}

// IsImage returns true if the document is one of the supported image types.
func (d *Document) IsImage() bool {
	switch d.MediaType {
	case MediaTypePNG, MediaTypeJPEG, MediaTypeGIF, MediaTypeWebP:
		return true
	default:
		return false
	}
}

// Attachment is binary content inlined into a user message.
type Attachment struct {
	MediaType string
	Data      []byte
}

// Message is one role-tagged entry of a prompt.
type Message struct {
	Role Role
	Text string

	// Attachment is only meaningful on user messages.
	Attachment *Attachment
}

// PromptContext is the ordered message list sent to the remote model for one
// invocation. When a system message is present it is the first entry, and
// there is never more than one.
type PromptContext struct {
	Messages []Message
}

// System returns the system instruction, or "" when the prompt has none.
func (p *PromptContext) System() string {
	if len(p.Messages) > 0 && p.Messages[0].Role == RoleSystem {
		return p.Messages[0].Text
	}
	return ""
}

// Turns returns the messages after the system instruction.
func (p *PromptContext) Turns() []Message {
	if len(p.Messages) > 0 && p.Messages[0].Role == RoleSystem {
		return p.Messages[1:]
	}
	return p.Messages
}

// Subject carries the identifying metadata of the request being answered.
// It is used for logging, event metadata and the fallback answer.
type Subject struct {
	Filename string
	FileType string
	FileSize int64
	ThreadID string
	Message  string
}

// IsDocument returns true if the subject is an uploaded document.
func (s Subject) IsDocument() bool {
	return s.Filename != ""
}

// Invocation is one call to a provider.
type Invocation struct {
	Prompt  *PromptContext
	Subject Subject
}

// Usage represents token usage reported by the remote model.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is a complete unary answer.
type Result struct {
	Text  string
	Model string
	Usage *Usage
}
