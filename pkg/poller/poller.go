package poller

import (
	"context"
	"errors"
	"time"
)

// ErrStop ends a polling loop when returned by a FetchFunc.
var ErrStop = errors.New("stop polling")

// FetchFunc performs one poll. Errors other than ErrStop are reported to the
// caller's wrapper and never stop the loop.
type FetchFunc func(ctx context.Context) error

// Handle controls one polling loop.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel prevents further ticks. A fetch already in flight runs to
// completion. Cancel is idempotent.
func (h *Handle) Cancel() {
	h.cancel()
}

// Done is closed once the loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Start fetches immediately, then again interval after each fetch returns,
// until the handle is cancelled, ctx is done, or fetch returns ErrStop.
// Fetches run on a context detached from the cancel token so that a
// cancellation never aborts a request whose result is about to be stored.
func Start(ctx context.Context, fetch FetchFunc, interval time.Duration) *Handle {
	loopCtx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	fetchCtx := context.WithoutCancel(ctx)

	go func() {
		defer close(h.done)
		defer cancel()

		if loopCtx.Err() != nil {
			return
		}
		if errors.Is(fetch(fetchCtx), ErrStop) {
			return
		}

		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-timer.C:
				if loopCtx.Err() != nil {
					return
				}
				if errors.Is(fetch(fetchCtx), ErrStop) {
					return
				}
				timer.Reset(interval)
			}
		}
	}()

	return h
}
