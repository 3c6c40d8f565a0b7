package stream

import (
	"context"
	"errors"

	"github.com/tjfontaine/rx-inference-gateway/internal/domain"
)

// StartFunc begins the remote draw. It is called only after the metadata
// record has been written, so a slow remote never delays the first record.
type StartFunc func(ctx context.Context) (<-chan domain.Fragment, error)

// ErrClientGone is returned by Pump when the response channel broke before
// the terminal record could be delivered.
var ErrClientGone = errors.New("stream: client disconnected")

// Pump writes meta, starts the draw, forwards every fragment as a chunk and
// finishes with exactly one terminal record.
//
// It returns nil when the stream completed with a done record, the failure
// when an error record was written, or ErrClientGone (wrapping the write
// error) when the response channel broke. The context passed to start is
// cancelled before Pump returns, which releases the remote draw.
func Pump(ctx context.Context, f *Framer, meta domain.StreamEvent, start StartFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := f.Metadata(meta); err != nil {
		return clientGone(err)
	}

	fragments, err := start(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			err = domain.FromContext(ctxErr)
		}
		return fail(f, err)
	}

	for {
		select {
		case <-ctx.Done():
			return fail(f, domain.FromContext(ctx.Err()))

		case frag, ok := <-fragments:
			if !ok {
				// A closed channel can race with cancellation; prefer the
				// cancellation so a truncated answer is never reported as done.
				if ctx.Err() != nil {
					return fail(f, domain.FromContext(ctx.Err()))
				}
				if err := f.Done(); err != nil {
					return clientGone(err)
				}
				return nil
			}
			if frag.Err != nil {
				return fail(f, frag.Err)
			}
			if frag.Text == "" {
				continue
			}
			if err := f.Chunk(frag.Text); err != nil {
				return clientGone(err)
			}
		}
	}
}

func fail(f *Framer, cause error) error {
	if err := f.Fail(cause); err != nil {
		return clientGone(err)
	}
	return cause
}

func clientGone(err error) error {
	if errors.Is(err, ErrOutOfOrder) || errors.Is(err, ErrTerminated) {
		return err
	}
	return errors.Join(ErrClientGone, err)
}
