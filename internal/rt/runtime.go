// Package rt is the process-wide executor behind the synchronous call surface.
//
// Every entry point of the bridge is synchronous for its caller: it submits
// one task with Block and the calling thread waits for it. Work that should
// overlap with the caller (stream read-ahead) is submitted with Go and
// collected later through Future.Wait.
package rt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/isesword/colfile-go-bridge/internal/config"
	"github.com/isesword/colfile-go-bridge/internal/logging"
)

var (
	// ErrClosed is returned when a task is submitted to a stopped runtime.
	ErrClosed = errors.New("runtime is closed")

	// ErrTaskPanicked wraps a panic recovered from a task.
	ErrTaskPanicked = errors.New("task panicked")
)

var (
	defaultOnce    sync.Once
	defaultRuntime *Runtime
	defaultErr     error
)

// Default returns the shared runtime, building it on first use.
//
// The runtime is built exactly once per process and never torn down. If it
// cannot be built, the same error is returned to every later caller.
func Default() (*Runtime, error) {
	defaultOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			defaultErr = fmt.Errorf("runtime initialization failed: %w", err)
			return
		}
		logging.SetLogger(logging.New(os.Stderr, cfg.LogLevel))
		defaultRuntime = New(cfg.Workers, cfg.QueueDepth)
	})
	return defaultRuntime, defaultErr
}

type runnable interface {
	run()
}

// Runtime is a fixed pool of worker goroutines fed by a bounded queue.
type Runtime struct {
	tasks   chan runnable
	stop    chan struct{}
	closed  atomic.Bool
	wg      sync.WaitGroup
	workers int
	log     *slog.Logger
}

// New starts a runtime with the given number of workers and queue depth.
func New(workers, queueDepth int) *Runtime {
	if workers <= 0 {
		workers = 1
	}
	if queueDepth <= 0 {
		queueDepth = workers
	}
	r := &Runtime{
		tasks:   make(chan runnable, queueDepth),
		stop:    make(chan struct{}),
		workers: workers,
		log:     logging.WithComponent("rt"),
	}
	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go r.worker()
	}
	r.log.Debug("executor started", "workers", workers, "queue_depth", queueDepth)
	return r
}

// Workers reports the size of the pool.
func (r *Runtime) Workers() int {
	return r.workers
}

// Close stops the workers. Tasks still queued are left for their waiters.
// The shared runtime returned by Default is never closed.
func (r *Runtime) Close() {
	if r.closed.CompareAndSwap(false, true) {
		close(r.stop)
		r.wg.Wait()
	}
}

func (r *Runtime) worker() {
	defer r.wg.Done()
	for {
		select {
		case t := <-r.tasks:
			t.run()
		case <-r.stop:
			return
		}
	}
}

// Block runs fn on the pool and blocks the calling thread until it returns.
//
// Block is meant for threads that do not belong to the pool (the callers of
// the exported functions). Pool tasks wait on each other through Future.Wait.
func Block[T any](r *Runtime, fn func(ctx context.Context) (T, error)) (T, error) {
	f := newFuture(context.Background(), fn)
	if r.closed.Load() {
		var zero T
		return zero, ErrClosed
	}
	select {
	case r.tasks <- f:
	case <-r.stop:
		var zero T
		return zero, ErrClosed
	}
	<-f.done
	return f.val, f.err
}

// Go submits fn without waiting for it. When the queue is full the task stays
// pending and runs on the first caller of Wait.
func Go[T any](ctx context.Context, r *Runtime, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture(ctx, fn)
	if r.closed.Load() {
		return f
	}
	select {
	case r.tasks <- f:
	default:
	}
	return f
}

func call[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (val T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, p)
		}
	}()
	if err := ctx.Err(); err != nil {
		return val, err
	}
	return fn(ctx)
}
