// Package prompt builds the ordered, role-tagged message list sent to the
// remote model from a loosely structured client payload.
package prompt

import (
	"fmt"
	"strings"

	"github.com/tjfontaine/rx-inference-gateway/internal/domain"
)

// DefaultAnalysisInstruction is used for document analysis when no system
// instruction is configured.
const DefaultAnalysisInstruction = "Analyze this prescription image and provide detailed information about medications, dosages, and instructions."

// AnalysisContext is the result of an earlier document analysis the caller
// wants the model to consider.
type AnalysisContext struct {
	Filename   string `json:"filename"`
	Analysis   string `json:"analysis"`
	UploadDate string `json:"uploadDate"`
	FileType   string `json:"fileType"`
}

// IsZero returns true when the context carries nothing worth rendering.
func (c *AnalysisContext) IsZero() bool {
	return c == nil || (strings.TrimSpace(c.Filename) == "" && strings.TrimSpace(c.Analysis) == "")
}

// Render formats the context as a readable user message.
func (c *AnalysisContext) Render() string {
	return fmt.Sprintf("Prescription Analysis Context:\nFile: %s\nUpload Date: %s\nFile Type: %s\n\nAnalysis Results:\n%s",
		c.Filename, c.UploadDate, c.FileType, c.Analysis)
}

// HistoryEntry is one prior turn as the client remembers it.
type HistoryEntry struct {
	ID        string `json:"id,omitempty"`
	Text      string `json:"text"`
	IsUser    *bool  `json:"isUser"`
	Timestamp string `json:"timestamp,omitempty"`
}

// valid reports whether the entry can be mapped to a role without guessing.
func (e HistoryEntry) valid() bool {
	return e.IsUser != nil && strings.TrimSpace(e.Text) != ""
}

// ChatInput is everything the caller supplied for one chat turn.
type ChatInput struct {
	Message string
	Context *AnalysisContext
	History []HistoryEntry
}

// SanitizeHistory drops entries that cannot be mapped to a role, preserving
// order. It returns the kept entries and how many were dropped.
func SanitizeHistory(entries []HistoryEntry) ([]HistoryEntry, int) {
	kept := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if e.valid() {
			kept = append(kept, e)
		}
	}
	return kept, len(entries) - len(kept)
}

// Assembler builds prompts. It is safe for concurrent use.
type Assembler struct {
	system              string
	analysisInstruction string
}

// NewAssembler creates an assembler. An empty system instruction means chat
// prompts carry no system message; an empty analysis instruction falls back to
// DefaultAnalysisInstruction.
func NewAssembler(system, analysisInstruction string) *Assembler {
	if strings.TrimSpace(analysisInstruction) == "" {
		analysisInstruction = DefaultAnalysisInstruction
	}
	return &Assembler{
		system:              strings.TrimSpace(system),
		analysisInstruction: analysisInstruction,
	}
}

// AssembleChat builds a chat prompt: system instruction, analysis context,
// history, then the current message.
func (a *Assembler) AssembleChat(in ChatInput) (*domain.PromptContext, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, domain.ErrEmptyInput("Message is required and must be a non-empty string")
	}

	history, _ := SanitizeHistory(in.History)
	messages := make([]domain.Message, 0, len(history)+3)

	if a.system != "" {
		messages = append(messages, domain.Message{Role: domain.RoleSystem, Text: a.system})
	}

	if !in.Context.IsZero() {
		messages = append(messages, domain.Message{Role: domain.RoleUser, Text: in.Context.Render()})
	}

	for _, entry := range history {
		role := domain.RoleAssistant
		if *entry.IsUser {
			role = domain.RoleUser
		}
		messages = append(messages, domain.Message{Role: role, Text: entry.Text})
	}

	messages = append(messages, domain.Message{Role: domain.RoleUser, Text: in.Message})

	return &domain.PromptContext{Messages: messages}, nil
}

// AssembleDocument builds a document-analysis prompt: exactly one user message
// combining the analysis instruction and the inlined document.
func (a *Assembler) AssembleDocument(doc *domain.Document) (*domain.PromptContext, error) {
	if doc == nil || len(doc.Data) == 0 {
		return nil, domain.ErrEmptyInput("No file provided")
	}

	return &domain.PromptContext{
		Messages: []domain.Message{{
			Role: domain.RoleUser,
			Text: a.analysisInstruction,
			Attachment: &domain.Attachment{
				MediaType: doc.MediaType,
				Data:      doc.Data,
			},
		}},
	}, nil
}
