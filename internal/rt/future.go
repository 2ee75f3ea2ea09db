package rt

import (
	"context"
	"sync/atomic"
)

const (
	statePending int32 = iota
	stateRunning
)

// Future is the pending result of a task submitted with Go.
type Future[T any] struct {
	state atomic.Int32
	ctx   context.Context
	fn    func(ctx context.Context) (T, error)
	done  chan struct{}
	val   T
	err   error
}

func newFuture[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	return &Future[T]{
		ctx:  ctx,
		fn:   fn,
		done: make(chan struct{}),
	}
}

// run executes the task once; later calls are no-ops.
func (f *Future[T]) run() {
	if !f.state.CompareAndSwap(statePending, stateRunning) {
		return
	}
	defer close(f.done)
	f.val, f.err = call(f.ctx, f.fn)
	f.fn = nil
}

// Done is closed once the task has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait returns the task result. A task no worker has picked up yet is run
// inline by the waiter.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	f.run()
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
