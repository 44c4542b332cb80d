package relay

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// admission caps concurrently running inference processes. A nil admission
// admits everything.
type admission struct {
	sem   *semaphore.Weighted
	limit int
	wait  time.Duration
}

func newAdmission(limit int, wait time.Duration) *admission {
	if limit <= 0 {
		return nil
	}
	return &admission{sem: semaphore.NewWeighted(int64(limit)), limit: limit, wait: wait}
}

// acquire reserves a slot, waiting up to a.wait (or until ctx is done when
// wait is zero). The returned release func must be called exactly once.
func (a *admission) acquire(ctx context.Context) (func(), error) {
	if a == nil {
		return func() {}, nil
	}
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	if a.sem.TryAcquire(1) {
		return func() { a.sem.Release(1) }, nil
	}
	wctx := ctx
	if a.wait > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, a.wait)
		defer cancel()
	}
	if err := a.sem.Acquire(wctx, 1); err != nil {
		if ctx.Err() != nil {
			return func() {}, ctx.Err()
		}
		return func() {}, &BusyError{Limit: a.limit}
	}
	return func() { a.sem.Release(1) }, nil
}
