// Package frontdoor serves the gateway's HTTP API: document analysis, chat and
// health. Each answer is delivered either as one JSON object or as a framed
// event stream.
package frontdoor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tjfontaine/rx-inference-gateway/internal/codec"
	"github.com/tjfontaine/rx-inference-gateway/internal/domain"
	"github.com/tjfontaine/rx-inference-gateway/internal/prompt"
	"github.com/tjfontaine/rx-inference-gateway/internal/server"
	"github.com/tjfontaine/rx-inference-gateway/internal/stream"
	"github.com/tjfontaine/rx-inference-gateway/internal/thread"
	"github.com/tjfontaine/rx-inference-gateway/internal/tokens"
	"github.com/tjfontaine/rx-inference-gateway/internal/upload"
)

const (
	// multipartOverhead is the allowance for form fields and part headers on
	// top of the file size ceiling.
	multipartOverhead = 1 << 20

	// multipartMemory is kept in memory before parts spill to temp files.
	multipartMemory = 32 << 20

	maxChatBody = 2 << 20
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// Route defines an HTTP route registration.
type Route struct {
	Path    string
	Method  string
	Handler http.HandlerFunc
}

// Options tunes request handling.
type Options struct {
	// StreamTimeout bounds a streamed answer. 0 disables.
	StreamTimeout time.Duration

	// RequestTimeout bounds a unary answer. 0 disables.
	RequestTimeout time.Duration

	// ModelConfigured is reported by the health endpoint.
	ModelConfigured bool
}

// Handler handles gateway API requests.
type Handler struct {
	provider  domain.Provider
	validator *upload.Validator
	assembler *prompt.Assembler
	estimator *tokens.Estimator
	opts      Options
	logger    *slog.Logger
}

// NewHandler creates a new handler.
func NewHandler(provider domain.Provider, validator *upload.Validator, assembler *prompt.Assembler, opts Options, logger *slog.Logger) *Handler {
	return &Handler{
		provider:  provider,
		validator: validator,
		assembler: assembler,
		estimator: tokens.NewEstimator(),
		opts:      opts,
		logger:    logger,
	}
}

// Routes returns the HTTP handler registrations of the gateway API.
func Routes(h *Handler) []Route {
	return []Route{
		{Path: "/api/analyze", Method: http.MethodPost, Handler: h.HandleAnalyze},
		{Path: "/api/chat", Method: http.MethodPost, Handler: h.HandleChat},
		{Path: "/api/ai", Method: http.MethodPost, Handler: h.HandleAnalyze},
		{Path: "/api/ai/v2", Method: http.MethodPost, Handler: h.HandleAIv2},
		{Path: "/healthz", Method: http.MethodGet, Handler: h.HandleHealth},
	}
}

type healthResponse struct {
	Status          string `json:"status"`
	ModelConfigured bool   `json:"model_configured"`
}

type analyzeResponse struct {
	Result string `json:"result"`
}

type chatResponse struct {
	Result   string `json:"result"`
	ThreadID string `json:"threadId"`
}

type chatRequest struct {
	Message             string                  `json:"message"`
	ThreadID            string                  `json:"threadId,omitempty"`
	PrescriptionContext *prompt.AnalysisContext `json:"prescriptionContext,omitempty"`
	ConversationHistory []prompt.HistoryEntry   `json:"conversationHistory,omitempty"`
	Stream              *bool                   `json:"stream,omitempty"`
}

// HandleHealth reports liveness and whether a model credential is configured.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	codec.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", ModelConfigured: h.opts.ModelConfigured})
}

// HandleAIv2 dispatches on the request content type: multipart uploads are
// analyzed, anything else is treated as a chat message.
func (h *Handler) HandleAIv2(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		h.HandleAnalyze(w, r)
		return
	}
	h.HandleChat(w, r)
}

// HandleAnalyze answers a multipart document upload.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lc := newLifecycle(ctx, h.logger)
	server.AddLogField(ctx, "operation", "analyze")

	doc, err := h.readDocument(w, r)
	if err != nil {
		h.reject(w, r, lc, err)
		return
	}
	lc.advance(domain.StateValidated)
	server.AddLogField(ctx, "filename", sanitizeFilename(doc.Name))
	server.AddLogField(ctx, "file_type", doc.MediaType)
	server.AddLogField(ctx, "file_size", strconv.FormatInt(doc.Size, 10))

	p, err := h.assembler.AssembleDocument(doc)
	if err != nil {
		h.reject(w, r, lc, err)
		return
	}
	lc.advance(domain.StatePromptAssembled)

	inv := &domain.Invocation{
		Prompt:  p,
		Subject: domain.Subject{Filename: doc.Name, FileType: doc.MediaType, FileSize: doc.Size},
	}
	meta := domain.StreamEvent{Filename: doc.Name, FileType: doc.MediaType, FileSize: doc.Size}

	h.respond(w, r, lc, inv, meta, wantsStream(r, nil), func(res *domain.Result) any {
		return analyzeResponse{Result: res.Text}
	})
}

// HandleChat answers a JSON chat message.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lc := newLifecycle(ctx, h.logger)
	server.AddLogField(ctx, "operation", "chat")

	req, err := h.readChat(w, r)
	if err != nil {
		h.reject(w, r, lc, err)
		return
	}

	threadID := thread.Resolve(req.ThreadID)
	server.AddLogField(ctx, "thread_id", threadID)
	if _, dropped := prompt.SanitizeHistory(req.ConversationHistory); dropped > 0 {
		server.AddLogField(ctx, "history_dropped", strconv.Itoa(dropped))
	}

	p, err := h.assembler.AssembleChat(prompt.ChatInput{
		Message: req.Message,
		Context: req.PrescriptionContext,
		History: req.ConversationHistory,
	})
	if err != nil {
		h.reject(w, r, lc, err)
		return
	}
	lc.advance(domain.StateValidated)
	lc.advance(domain.StatePromptAssembled)

	inv := &domain.Invocation{
		Prompt:  p,
		Subject: domain.Subject{ThreadID: threadID, Message: req.Message},
	}
	meta := domain.StreamEvent{ThreadID: threadID}

	h.respond(w, r, lc, inv, meta, wantsStream(r, req.Stream), func(res *domain.Result) any {
		return chatResponse{Result: res.Text, ThreadID: threadID}
	})
}

// readDocument reads and validates the "file" part of a multipart upload.
func (h *Handler) readDocument(w http.ResponseWriter, r *http.Request) (*domain.Document, error) {
	limit := h.validator.MaxSize() + multipartOverhead
	if r.ContentLength > limit {
		return nil, h.tooLarge()
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, h.tooLarge()
		}
		return nil, domain.ErrInvalidRequest("Invalid request format. Expected multipart/form-data with a file field.").WithCause(err)
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		return nil, domain.ErrInvalidRequest("No file provided")
	}
	return h.validator.ReadFile(files[0])
}

func (h *Handler) tooLarge() error {
	return h.validator.CheckSize(h.validator.MaxSize() + 1)
}

func (h *Handler) readChat(w http.ResponseWriter, r *http.Request) (*chatRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, domain.ErrPayloadTooLarge("Request body too large").WithCause(err)
		}
		return nil, domain.ErrInvalidRequest("Invalid JSON in request body").WithCause(err)
	}
	return &req, nil
}

// respond invokes the provider and delivers the answer in the chosen mode.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, lc *lifecycle, inv *domain.Invocation, meta domain.StreamEvent, streaming bool, unary func(*domain.Result) any) {
	ctx := r.Context()
	server.AddLogField(ctx, "provider", h.provider.Name())
	server.AddLogField(ctx, "prompt_tokens_est", strconv.Itoa(h.estimator.EstimatePrompt(inv.Prompt)))
	server.AddLogField(ctx, "stream", strconv.FormatBool(streaming))

	lc.advance(domain.StateInvoking)
	if streaming {
		h.streamAnswer(w, r, lc, inv, meta)
		return
	}
	h.unaryAnswer(w, r, lc, inv, unary)
}

func (h *Handler) streamAnswer(w http.ResponseWriter, r *http.Request, lc *lifecycle, inv *domain.Invocation, meta domain.StreamEvent) {
	ctx, cancel := withTimeout(r.Context(), h.opts.StreamTimeout)
	defer cancel()

	stream.SetHeaders(w.Header())
	w.WriteHeader(http.StatusOK)

	f := stream.NewFramer(w)
	err := stream.Pump(ctx, f, meta, func(ctx context.Context) (<-chan domain.Fragment, error) {
		lc.advance(domain.StateStreaming)
		return h.provider.Stream(ctx, inv)
	})
	server.AddLogField(r.Context(), "chunks", strconv.Itoa(f.Chunks()))

	if err == nil {
		lc.advance(domain.StateCompleted)
		return
	}
	if errors.Is(err, stream.ErrClientGone) {
		server.AddLogField(r.Context(), "client_gone", "true")
	}
	lc.fail(err)
	h.logger.Warn("stream ended with error",
		slog.String("request_id", server.GetRequestID(r.Context())),
		slog.String("error", err.Error()),
	)
}

func (h *Handler) unaryAnswer(w http.ResponseWriter, r *http.Request, lc *lifecycle, inv *domain.Invocation, unary func(*domain.Result) any) {
	ctx, cancel := withTimeout(r.Context(), h.opts.RequestTimeout)
	defer cancel()

	lc.advance(domain.StateUnary)
	res, err := h.provider.Complete(ctx, inv)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			err = domain.FromContext(ctxErr)
		}
		h.reject(w, r, lc, err)
		return
	}

	if res.Usage != nil {
		server.AddLogField(r.Context(), "prompt_tokens", strconv.Itoa(res.Usage.PromptTokens))
		server.AddLogField(r.Context(), "completion_tokens", strconv.Itoa(res.Usage.CompletionTokens))
	}
	if err := codec.WriteJSON(w, http.StatusOK, unary(res)); err != nil {
		lc.fail(err)
		return
	}
	lc.advance(domain.StateCompleted)
}

// reject answers with a JSON error body before any answer was started.
func (h *Handler) reject(w http.ResponseWriter, r *http.Request, lc *lifecycle, err error) {
	lc.fail(err)

	apiErr := domain.ToAPIError(err)
	level := slog.LevelWarn
	if !apiErr.Kind.IsClientInput() {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request rejected",
		slog.String("request_id", server.GetRequestID(r.Context())),
		slog.String("code", string(apiErr.Kind)),
		slog.String("error", err.Error()),
	)
	codec.WriteError(w, apiErr)
}

// wantsStream reports whether the answer should be streamed. Streaming is the
// default; ?stream=false or a JSON "stream": false selects a unary answer.
func wantsStream(r *http.Request, bodyFlag *bool) bool {
	if q := r.URL.Query().Get("stream"); q != "" {
		if v, err := strconv.ParseBool(q); err == nil {
			return v
		}
	}
	if bodyFlag != nil {
		return *bodyFlag
	}
	return true
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// sanitizeFilename keeps only characters safe to log.
func sanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(name), "_")
}
