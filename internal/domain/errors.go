// Package domain provides canonical types and error kinds for the gateway.
package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of a gateway error.
type Kind string

const (
	// KindPayloadTooLarge indicates an upload above the size ceiling.
	KindPayloadTooLarge Kind = "payload_too_large"

	// KindUnsupportedMediaType indicates an upload whose resolved type is not accepted.
	KindUnsupportedMediaType Kind = "unsupported_media_type"

	// KindInvalidPayload indicates bytes that cannot plausibly be the declared type.
	KindInvalidPayload Kind = "invalid_payload"

	// KindEmptyInput indicates a chat message that is absent or blank.
	KindEmptyInput Kind = "empty_input"

	// KindInvalidRequest indicates a malformed request envelope (bad JSON, missing file field).
	KindInvalidRequest Kind = "invalid_request"

	// KindInvalidArgument indicates the remote model rejected the assembled prompt.
	KindInvalidArgument Kind = "invalid_argument"

	// KindQuotaExceeded indicates remote quota or rate exhaustion.
	KindQuotaExceeded Kind = "quota_exceeded"

	// KindUpstreamUnavailable indicates the remote model could not be reached or answered unexpectedly.
	KindUpstreamUnavailable Kind = "upstream_unavailable"

	// KindInternal indicates anything unclassified.
	KindInternal Kind = "internal"
)

// IsClientInput reports whether errors of this kind are detected before any
// remote call is attempted.
func (k Kind) IsClientInput() bool {
	switch k {
	case KindPayloadTooLarge, KindUnsupportedMediaType, KindInvalidPayload, KindEmptyInput, KindInvalidRequest:
		return true
	default:
		return false
	}
}

// Retryable reports whether the caller may resubmit the same request later.
func (k Kind) Retryable() bool {
	return k == KindQuotaExceeded || k == KindUpstreamUnavailable
}

// APIError is the canonical error returned by validators and providers and
// translated into an HTTP response or an in-band error event by the frontdoor.
type APIError struct {
	// Kind is the category of error
	Kind Kind `json:"code"`

	// Message is the human-readable error message safe to show to callers
	Message string `json:"error"`

	// StatusCode overrides the HTTP status derived from Kind
	StatusCode int `json:"-"`

	// Cause is the underlying error, if any. Never serialized.
	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Kind {
	case KindPayloadTooLarge, KindUnsupportedMediaType, KindInvalidPayload,
		KindEmptyInput, KindInvalidRequest, KindInvalidArgument:
		return http.StatusBadRequest
	case KindQuotaExceeded:
		return http.StatusTooManyRequests
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(kind Kind, message string) *APIError {
	return &APIError{
		Kind:    kind,
		Message: message,
	}
}

// WithCause attaches the underlying error.
func (e *APIError) WithCause(err error) *APIError {
	e.Cause = err
	return e
}

// WithStatusCode sets a specific HTTP status code.
func (e *APIError) WithStatusCode(code int) *APIError {
	e.StatusCode = code
	return e
}

// Convenience constructors for common errors

// ErrPayloadTooLarge creates a payload too large error.
func ErrPayloadTooLarge(message string) *APIError {
	return NewAPIError(KindPayloadTooLarge, message)
}

// ErrUnsupportedMediaType creates an unsupported media type error.
func ErrUnsupportedMediaType(message string) *APIError {
	return NewAPIError(KindUnsupportedMediaType, message)
}

// ErrInvalidPayload creates an invalid payload error.
func ErrInvalidPayload(message string) *APIError {
	return NewAPIError(KindInvalidPayload, message)
}

// ErrEmptyInput creates an empty input error.
func ErrEmptyInput(message string) *APIError {
	return NewAPIError(KindEmptyInput, message)
}

// ErrInvalidRequest creates an invalid request error.
func ErrInvalidRequest(message string) *APIError {
	return NewAPIError(KindInvalidRequest, message)
}

// ErrInvalidArgument creates an error for prompts rejected by the remote model.
func ErrInvalidArgument(message string) *APIError {
	return NewAPIError(KindInvalidArgument, message)
}

// ErrQuotaExceeded creates a quota exceeded error.
func ErrQuotaExceeded(message string) *APIError {
	return NewAPIError(KindQuotaExceeded, message)
}

// ErrUpstreamUnavailable creates an upstream unavailable error.
func ErrUpstreamUnavailable(message string) *APIError {
	return NewAPIError(KindUpstreamUnavailable, message)
}

// ErrInternal creates an internal error.
func ErrInternal(message string) *APIError {
	return NewAPIError(KindInternal, message)
}

// ToAPIError converts any error to an *APIError.
// If the error already is (or wraps) an *APIError, it is returned directly.
// Otherwise the error is wrapped as an internal error with a generic message.
func ToAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrInternal("Internal server error. Please try again later.").WithCause(err)
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInternal
}

// FromContext converts a context error into a canonical error. A deadline
// means the answer took too long; cancellation means the request went away.
func FromContext(err error) *APIError {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrUpstreamUnavailable("The response took too long and was stopped. Please try again.").WithCause(err)
	}
	return ErrInternal("Failed to generate streaming response").WithCause(err)
}
