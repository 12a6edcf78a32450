package framework

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/golang/glog"
)

// ErrForcedExit is returned by Wait when a second stop signal arrives.
var ErrForcedExit = errors.New("forced exit")

// Runner supervises the tasks of a program. Whichever task returns first,
// for any reason, stops the others: a driver must not keep stimulating
// once its loop ended, nor keep running unobserved.
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup
	forced chan struct{}

	lock sync.Mutex
	errs AggregatedError
}

// NewRunner creates a Runner stopped when ctx is done.
func NewRunner(ctx context.Context) *Runner {
	r := &Runner{forced: make(chan struct{})}
	r.ctx, r.cancel = context.WithCancel(ctx)
	return r
}

// Context is canceled when the Runner stops.
func (r *Runner) Context() context.Context { return r.ctx }

// Stop cancels every task.
func (r *Runner) Stop() { r.cancel() }

// HandleSignals stops the Runner on SIGINT or SIGTERM. A second signal
// makes Wait return without waiting for the tasks.
func (r *Runner) HandleSignals() *Runner {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		glog.Info("stop requested")
		r.Stop()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(r.forced)
	}()
	return r
}

// Go starts a named task.
func (r *Runner) Go(name string, task Runnable) *Runner {
	r.tasks.Add(1)
	glog.V(4).Infof("task %s started", name)
	go func() {
		defer r.tasks.Done()
		err := task.Run(r.ctx)
		glog.V(4).Infof("task %s stopped: %v", name, err)
		if err != nil && !errors.Is(err, context.Canceled) {
			r.lock.Lock()
			r.errs.Add(err)
			r.lock.Unlock()
		}
		r.Stop()
	}()
	return r
}

// Wait waits for every task and returns their errors, context.Canceled
// excluded.
func (r *Runner) Wait() error {
	done := make(chan struct{})
	go func() {
		r.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-r.forced:
		return ErrForcedExit
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.errs.Aggregate()
}

// RunWithContextCloser runs fn and closes closer either when the context
// is canceled or when fn returns.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case <-ctx.Done():
		closer.Close()
		<-errCh
		return context.Canceled
	case err := <-errCh:
		closer.Close()
		return err
	}
}
