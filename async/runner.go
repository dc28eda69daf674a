// Package async runs slow calls on their own goroutines while keeping all
// result handling on the single goroutine that owns the Runner.
package async

import (
	"context"
)

// Runner spawns goroutines for AsyncFunctions and delivers their results to
// callbacks through a Mailbox. Typical fan-out from a scheduling loop:
//
//	runner := async.NewRunner()
//	for _, s := range sessions {
//	  s := s
//	  runner.RunAsync(func() error { return s.Abort(ctx) }, func(err error) { ... })
//	}
//	runner.Drain(ctx)
//
// The callbacks run inside ProcessMessages, Wait or Drain.
type Runner struct {
	bx   *Mailbox
	done chan struct{}
}

func NewRunner() *Runner {
	return &Runner{
		bx:   NewMailbox(),
		done: make(chan struct{}, 1),
	}
}

func (r *Runner) NumRunning() int {
	return r.bx.Count()
}

// RunAsync runs f on a new goroutine. cb is invoked with f's result by a
// later ProcessMessages, Wait or Drain call.
func (r *Runner) RunAsync(f func() error, cb AsyncErrorResponseHandler) {
	asyncErr := r.bx.NewAsyncError(cb)
	go func(rsp *AsyncError) {
		rsp.SetValue(f())
		select {
		case r.done <- struct{}{}:
		default:
		}
	}(asyncErr)
}

// ProcessMessages invokes the callbacks of all completed functions.
func (r *Runner) ProcessMessages() int {
	return r.bx.ProcessMessages()
}

// Wait blocks until at least one callback has run or ctx is done, and
// returns the number of callbacks run.
func (r *Runner) Wait(ctx context.Context) int {
	for r.bx.Count() > 0 {
		if n := r.bx.ProcessMessages(); n > 0 {
			return n
		}
		select {
		case <-r.done:
		case <-ctx.Done():
			return r.bx.ProcessMessages()
		}
	}
	return 0
}

// Drain processes messages until nothing is running or ctx is done.
// Functions still running when ctx expires keep their callbacks registered.
func (r *Runner) Drain(ctx context.Context) {
	for r.bx.Count() > 0 {
		if r.Wait(ctx) == 0 && ctx.Err() != nil {
			return
		}
	}
}
