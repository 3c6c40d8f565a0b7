package domain

import (
	"context"
)

// Provider defines the interface for generative model backends.
type Provider interface {
	Name() string

	// Complete handles unary requests (non-streaming)
	Complete(ctx context.Context, inv *Invocation) (*Result, error)

	// Stream returns a channel of fragments, each the delta since the previous one.
	// The channel MUST be closed by the provider when done, and the provider
	// MUST stop sending once ctx is cancelled.
	Stream(ctx context.Context, inv *Invocation) (<-chan Fragment, error)
}
