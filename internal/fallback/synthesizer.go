// Package fallback produces a canned answer when no model credential is
// configured, so the gateway stays demonstrable end to end.
package fallback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tjfontaine/rx-inference-gateway/internal/domain"
)

// ProviderName identifies the synthesizer in logs and results.
const ProviderName = "fallback"

// DefaultWordDelay is the pause between streamed fragments.
const DefaultWordDelay = 50 * time.Millisecond

const documentTemplate = `# Prescription Analysis

## File Information
- **Filename**: %s
- **File Type**: %s
- **File Size**: %.2f KB

## Analysis Results
This appears to be a prescription document. To get a detailed analysis, please ensure the GEMINI_API_KEY environment variable is properly configured.

## Medications Detected
- Sample medication information would appear here
- Dosage instructions would be analyzed
- Potential interactions would be identified

## Important Notes
- This is a demo response
- Please configure your API key for full functionality
- Always consult with healthcare professionals for medical advice

## Next Steps
1. Set GEMINI_API_KEY in the environment or in .env
2. Upload your prescription again
3. Get detailed AI analysis`

const chatTemplate = `I received your question: "%s"

The assistant is running without a model credential, so it cannot answer yet. Please set GEMINI_API_KEY in the environment or in .env and ask again.

Always consult with healthcare professionals for medical advice.`

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithWordDelay sets the pause between streamed fragments. Zero disables it.
func WithWordDelay(d time.Duration) Option {
	return func(s *Synthesizer) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// Synthesizer implements domain.Provider with fixed templates.
type Synthesizer struct {
	delay time.Duration
}

// New creates a synthesizer.
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{delay: DefaultWordDelay}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Synthesizer) Name() string {
	return ProviderName
}

// Render returns the full answer for subject.
func Render(subject domain.Subject) string {
	if subject.IsDocument() {
		return fmt.Sprintf(documentTemplate, subject.Filename, subject.FileType, float64(subject.FileSize)/1024)
	}
	return fmt.Sprintf(chatTemplate, strings.TrimSpace(subject.Message))
}

// Split cuts text after every space. Joining the pieces yields text unchanged.
func Split(text string) []string {
	return strings.SplitAfter(text, " ")
}

func (s *Synthesizer) Complete(ctx context.Context, inv *domain.Invocation) (*domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &domain.Result{Text: Render(inv.Subject), Model: ProviderName}, nil
}

func (s *Synthesizer) Stream(ctx context.Context, inv *domain.Invocation) (<-chan domain.Fragment, error) {
	words := Split(Render(inv.Subject))

	out := make(chan domain.Fragment)
	go func() {
		defer close(out)

		var ticker *time.Ticker
		if s.delay > 0 {
			ticker = time.NewTicker(s.delay)
			defer ticker.Stop()
		}

		for i, word := range words {
			if i > 0 && ticker != nil {
				select {
				case <-ticker.C:
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- domain.Fragment{Text: word}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
