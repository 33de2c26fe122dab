// Package worker runs a recurring background computation with cooperative
// cancellation.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dudk/plinth/atomics"
	"github.com/dudk/plinth/internal/goid"
)

// ErrStopped is returned by Start when the context is already done.
var ErrStopped = errors.New("worker stopped")

type (
	// Executor is a single step of a background computation. Execute is
	// called in a loop until it returns an error or exit is requested.
	// Returning io.EOF ends the loop without an error.
	Executor interface {
		Start(context.Context) error
		Execute(context.Context) error
		Flush(context.Context) error
	}

	// Funcs adapts plain closures to Executor. Nil hooks are skipped.
	Funcs struct {
		StartFunc   func(context.Context) error
		ExecuteFunc func(context.Context) error
		FlushFunc   func(context.Context) error
	}
)

// Start calls the start hook.
func (f Funcs) Start(ctx context.Context) error {
	return callHook(ctx, f.StartFunc)
}

// Execute calls the execute hook.
func (f Funcs) Execute(ctx context.Context) error {
	return callHook(ctx, f.ExecuteFunc)
}

// Flush calls the flush hook.
func (f Funcs) Flush(ctx context.Context) error {
	return callHook(ctx, f.FlushFunc)
}

func callHook(ctx context.Context, hook func(context.Context) error) error {
	if hook == nil {
		return nil
	}
	return hook(ctx)
}

// Worker owns the goroutine that runs an Executor.
type Worker struct {
	name     string
	logger   logrus.FieldLogger
	executor Executor
	cancelFn context.CancelFunc
	done     chan struct{}
	goid     atomics.Int64
	err      error
}

// Start launches the executor in a new goroutine. The worker stops when ctx
// is done, when RequestExit is called or when Execute returns an error.
func Start(ctx context.Context, name string, logger logrus.FieldLogger, e Executor) (*Worker, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStopped, err)
	}
	ctx, cancelFn := context.WithCancel(ctx)
	w := Worker{
		name:     name,
		logger:   logger.WithField("worker", name),
		executor: e,
		cancelFn: cancelFn,
		done:     make(chan struct{}),
	}
	go w.run(ctx)
	return &w, nil
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	defer w.cancelFn()
	w.goid.Set(goid.Current())
	defer w.goid.Set(0)
	w.logger.Debug("started")

	if err := w.executor.Start(ctx); err != nil {
		w.err = fmt.Errorf("error starting %s: %w", w.name, err)
		return
	}
	var e ErrorRun
	for ctx.Err() == nil {
		if err := w.executor.Execute(ctx); err != nil {
			if err != io.EOF && !errors.Is(err, context.Canceled) {
				e.ErrExec = fmt.Errorf("error running %s: %w", w.name, err)
			}
			break
		}
	}
	// flush must run even if the context is already cancelled.
	if err := w.executor.Flush(context.WithoutCancel(ctx)); err != nil {
		e.ErrFlush = fmt.Errorf("error flushing %s: %w", w.name, err)
	}
	w.err = e.ret()
	w.logger.Debug("exited")
}

// RequestExit asks the worker to stop. The executor observes it at the top
// of its next iteration or through its context.
func (w *Worker) RequestExit() {
	w.cancelFn()
}

// Done is closed once the worker goroutine has returned.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Wait blocks until the worker returns or ctx is done. It returns the
// worker's error in the first case and the context error in the second.
func (w *Worker) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsCurrent reports whether it is called from the worker goroutine.
func (w *Worker) IsCurrent() bool {
	id := w.goid.Get()
	return id != 0 && id == goid.Current()
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
