package gemini

import (
	"context"
	"errors"
	"net"
	"net/http"

	"google.golang.org/genai"

	"github.com/tjfontaine/rx-inference-gateway/internal/domain"
)

// Client-facing messages. Raw upstream text is never returned to callers.
const (
	msgInvalidArgument     = "Invalid request. Please check your input and try again."
	msgQuotaExceeded       = "API quota exceeded. Please try again later."
	msgUpstreamUnavailable = "The AI service is temporarily unavailable. Please try again later."
	msgUnexpectedResponse  = "The AI service returned an unexpected response. Please try again."
	msgTimeout             = "The AI service took too long to respond. Please try again."
	msgInternal            = "Failed to generate AI response"
)

// Classify maps a failure from the genai SDK to a canonical error. It uses
// the structured status of the API error and never inspects message text.
// Failures without a status, such as an undecodable response body, are
// treated as an unexpected response from the upstream.
func Classify(err error) *domain.APIError {
	if err == nil {
		return nil
	}

	var existing *domain.APIError
	if errors.As(err, &existing) {
		return existing
	}

	if code, status, ok := apiStatus(err); ok {
		return classifyStatus(code, status).WithCause(err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrUpstreamUnavailable(msgTimeout).WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return domain.ErrInternal(msgInternal).WithCause(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.ErrUpstreamUnavailable(msgUpstreamUnavailable).WithCause(err)
	}

	return domain.ErrUpstreamUnavailable(msgUnexpectedResponse).WithCause(err)
}

func apiStatus(err error) (int, string, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Status, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Status, true
	}
	return 0, "", false
}

func classifyStatus(code int, status string) *domain.APIError {
	switch status {
	case "INVALID_ARGUMENT", "FAILED_PRECONDITION":
		return domain.ErrInvalidArgument(msgInvalidArgument)
	case "RESOURCE_EXHAUSTED":
		return domain.ErrQuotaExceeded(msgQuotaExceeded)
	case "UNAVAILABLE", "DEADLINE_EXCEEDED", "UNAUTHENTICATED", "PERMISSION_DENIED":
		return domain.ErrUpstreamUnavailable(msgUpstreamUnavailable)
	}

	switch {
	case code == http.StatusBadRequest:
		return domain.ErrInvalidArgument(msgInvalidArgument)
	case code == http.StatusTooManyRequests:
		return domain.ErrQuotaExceeded(msgQuotaExceeded)
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		// A rejected credential is an operator problem, not a caller one.
		return domain.ErrUpstreamUnavailable(msgUpstreamUnavailable)
	case code >= 500:
		return domain.ErrUpstreamUnavailable(msgUpstreamUnavailable)
	default:
		return domain.ErrInternal(msgInternal)
	}
}
