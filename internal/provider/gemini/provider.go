// Package gemini implements domain.Provider over the Google Gemini API.
package gemini

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/tjfontaine/rx-inference-gateway/internal/domain"
	"github.com/tjfontaine/rx-inference-gateway/internal/tokens"
)

// ProviderName identifies the provider in logs and results.
const ProviderName = "gemini"

// Defaults used when the corresponding option is not set.
const (
	DefaultModel           = "gemini-2.5-flash-lite"
	DefaultTemperature     = float32(0.7)
	DefaultMaxOutputTokens = int32(2048)
)

var tracer = otel.Tracer("github.com/tjfontaine/rx-inference-gateway/internal/provider/gemini")

// ProviderOption configures the provider.
type ProviderOption func(*Provider)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// WithModel sets the model name.
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) ProviderOption {
	return func(p *Provider) {
		p.temperature = t
	}
}

// WithMaxOutputTokens sets the output ceiling.
func WithMaxOutputTokens(n int32) ProviderOption {
	return func(p *Provider) {
		if n > 0 {
			p.maxOutputTokens = n
		}
	}
}

// WithEstimator records a prompt size estimate on every span.
func WithEstimator(e *tokens.Estimator) ProviderOption {
	return func(p *Provider) {
		p.estimator = e
	}
}

// Provider implements the domain.Provider interface using the genai SDK.
type Provider struct {
	client          *genai.Client
	baseURL         string
	httpClient      *http.Client
	model           string
	temperature     float32
	maxOutputTokens int32
	estimator       *tokens.Estimator
}

// New creates a new Gemini provider. An empty apiKey is rejected; callers
// without a credential use the fallback synthesizer instead.
func New(ctx context.Context, apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}

	p := &Provider{
		model:           DefaultModel,
		temperature:     DefaultTemperature,
		maxOutputTokens: DefaultMaxOutputTokens,
	}
	for _, opt := range opts {
		opt(p)
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if p.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	p.client = client
	return p, nil
}

func (p *Provider) Name() string {
	return ProviderName
}

// Model returns the configured model name.
func (p *Provider) Model() string {
	return p.model
}

func (p *Provider) Complete(ctx context.Context, inv *domain.Invocation) (*domain.Result, error) {
	ctx, span := p.startSpan(ctx, "gemini.Complete", inv)
	defer span.End()

	contents, config := p.toRequest(inv.Prompt)

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		apiErr := Classify(err)
		recordError(span, apiErr)
		return nil, apiErr
	}

	text := resp.Text()
	if text == "" {
		apiErr := domain.ErrUpstreamUnavailable(msgUnexpectedResponse)
		recordError(span, apiErr)
		return nil, apiErr
	}

	result := &domain.Result{Text: text, Model: p.model, Usage: toUsage(resp.UsageMetadata)}
	if result.Usage != nil {
		span.SetAttributes(
			attribute.Int("gen_ai.usage.input_tokens", result.Usage.PromptTokens),
			attribute.Int("gen_ai.usage.output_tokens", result.Usage.CompletionTokens),
		)
	}
	return result, nil
}

func (p *Provider) Stream(ctx context.Context, inv *domain.Invocation) (<-chan domain.Fragment, error) {
	ctx, span := p.startSpan(ctx, "gemini.Stream", inv)

	contents, config := p.toRequest(inv.Prompt)

	out := make(chan domain.Fragment)
	go func() {
		defer close(out)
		defer span.End()

		fragments := 0
		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, config) {
			if err != nil {
				apiErr := Classify(err)
				recordError(span, apiErr)
				select {
				case out <- domain.Fragment{Err: apiErr}:
				case <-ctx.Done():
				}
				return
			}

			text := resp.Text()
			if text == "" {
				continue
			}
			select {
			case out <- domain.Fragment{Text: text}:
				fragments++
			case <-ctx.Done():
				span.SetAttributes(attribute.Bool("gateway.stream.abandoned", true))
				return
			}
		}
		span.SetAttributes(attribute.Int("gateway.stream.fragments", fragments))

		if fragments == 0 {
			apiErr := domain.ErrUpstreamUnavailable(msgUnexpectedResponse)
			recordError(span, apiErr)
			select {
			case out <- domain.Fragment{Err: apiErr}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}

func (p *Provider) startSpan(ctx context.Context, name string, inv *domain.Invocation) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("gen_ai.system", ProviderName),
		attribute.String("gen_ai.request.model", p.model),
		attribute.Bool("gateway.subject.document", inv.Subject.IsDocument()),
	)
	if p.estimator != nil {
		span.SetAttributes(attribute.Int("gateway.prompt.estimated_tokens", p.estimator.EstimatePrompt(inv.Prompt)))
	}
	return ctx, span
}

func recordError(span trace.Span, err *domain.APIError) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(err.Kind))
}

// toRequest converts a prompt to genai contents. The system message becomes
// the config's SystemInstruction; assistant turns use the model role.
func (p *Provider) toRequest(prompt *domain.PromptContext) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.temperature),
		MaxOutputTokens: p.maxOutputTokens,
	}
	if prompt == nil {
		return nil, config
	}

	if system := prompt.System(); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	var contents []*genai.Content
	for _, m := range prompt.Turns() {
		switch m.Role {
		case domain.RoleUser:
			parts := []*genai.Part{}
			if m.Text != "" {
				parts = append(parts, genai.NewPartFromText(m.Text))
			}
			if m.Attachment != nil {
				parts = append(parts, genai.NewPartFromBytes(m.Attachment.Data, m.Attachment.MediaType))
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
		case domain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Text, genai.RoleModel))
		}
	}
	return contents, config
}

func toUsage(md *genai.GenerateContentResponseUsageMetadata) *domain.Usage {
	if md == nil {
		return nil
	}
	return &domain.Usage{
		PromptTokens:     int(md.PromptTokenCount),
		CompletionTokens: int(md.CandidatesTokenCount),
		TotalTokens:      int(md.TotalTokenCount),
	}
}
