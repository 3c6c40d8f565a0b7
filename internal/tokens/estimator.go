// Package tokens estimates prompt sizes before a remote call. The estimate is
// used for logging and tracing only; the remote model reports exact usage.
package tokens

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/tjfontaine/rx-inference-gateway/internal/domain"
)

const (
	// messageOverhead approximates role tokens and separators per message.
	messageOverhead = 4

	// attachmentTokens is the flat cost charged for an inline image or document.
	attachmentTokens = 258

	// charsPerToken is used when the BPE codec cannot be loaded.
	charsPerToken = 4.0
)

// Estimator counts tokens with the cl100k_base encoding. Gemini uses its own
// vocabulary, so counts are approximate.
type Estimator struct {
	once    sync.Once
	codec   tokenizer.Codec
	loadErr error
}

// NewEstimator creates an estimator. The codec is loaded on first use.
func NewEstimator() *Estimator {
	return &Estimator{}
}

func (e *Estimator) load() (tokenizer.Codec, error) {
	e.once.Do(func() {
		codec, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			e.loadErr = fmt.Errorf("failed to get tokenizer encoding: %w", err)
			return
		}
		e.codec = codec
	})
	return e.codec, e.loadErr
}

// Count returns the number of tokens in text.
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	codec, err := e.load()
	if err != nil {
		return int(float64(len(text))/charsPerToken + 0.5)
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return int(float64(len(text))/charsPerToken + 0.5)
	}
	return len(ids)
}

// EstimatePrompt returns the approximate input size of p.
func (e *Estimator) EstimatePrompt(p *domain.PromptContext) int {
	if p == nil {
		return 0
	}
	total := 0
	for _, m := range p.Messages {
		total += e.Count(m.Text) + messageOverhead
		if m.Attachment != nil {
			total += attachmentTokens
		}
	}
	return total
}
