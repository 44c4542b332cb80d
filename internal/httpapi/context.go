package httpapi

import (
	"context"
)

// joinContexts returns a child of req that is also canceled when base is done.
// Request-scoped values (request id) stay reachable. The returned cancel func
// must be called when the handler ends.
func joinContexts(base, req context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(req)
	stop := context.AfterFunc(base, func() { cancel(context.Cause(base)) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}
