package frontdoor

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tjfontaine/rx-inference-gateway/internal/domain"
	"github.com/tjfontaine/rx-inference-gateway/internal/server"
)

// lifecycle tracks the states one request passes through and reports them in
// the request log.
type lifecycle struct {
	ctx    context.Context
	logger *slog.Logger
	state  domain.State
	path   []string
}

func newLifecycle(ctx context.Context, logger *slog.Logger) *lifecycle {
	l := &lifecycle{ctx: ctx, logger: logger, state: domain.StateReceived}
	l.record()
	return l
}

// advance moves to next. Illegal transitions are logged and ignored.
func (l *lifecycle) advance(next domain.State) {
	if !l.state.CanTransition(next) {
		l.logger.Warn("illegal lifecycle transition",
			slog.String("request_id", server.GetRequestID(l.ctx)),
			slog.String("from", string(l.state)),
			slog.String("to", string(next)),
		)
		return
	}
	l.state = next
	l.record()
}

// fail moves to Failed unless the request already reached a terminal state.
func (l *lifecycle) fail(err error) {
	server.AddError(l.ctx, err)
	if !l.state.IsTerminal() {
		l.advance(domain.StateFailed)
	}
}

func (l *lifecycle) record() {
	l.path = append(l.path, string(l.state))
	server.SetState(l.ctx, l.state)
	server.AddLogField(l.ctx, "states", strings.Join(l.path, ">"))
}
