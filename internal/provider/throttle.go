package provider

import (
	"context"
	"time"

	"github.com/tjfontaine/rx-inference-gateway/internal/domain"
)

// DefaultPreCallDelay is the pause inserted before every remote call.
const DefaultPreCallDelay = time.Second

// Throttled wraps a provider and waits a fixed delay before each call. It
// spreads bursts against a rate-limited upstream; it does not guarantee any
// rate. A cancelled context ends the wait early.
type Throttled struct {
	inner domain.Provider
	delay time.Duration
}

// NewThrottled creates a Throttled provider. A delay <= 0 disables waiting.
func NewThrottled(inner domain.Provider, delay time.Duration) *Throttled {
	return &Throttled{
		inner: inner,
		delay: delay,
	}
}

func (p *Throttled) Name() string {
	return p.inner.Name()
}

// Unwrap returns the wrapped provider.
func (p *Throttled) Unwrap() domain.Provider {
	return p.inner
}

func (p *Throttled) Complete(ctx context.Context, inv *domain.Invocation) (*domain.Result, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.inner.Complete(ctx, inv)
}

func (p *Throttled) Stream(ctx context.Context, inv *domain.Invocation) (<-chan domain.Fragment, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.inner.Stream(ctx, inv)
}

func (p *Throttled) wait(ctx context.Context) error {
	if p.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(p.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
