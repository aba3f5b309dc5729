package session

import (
	"context"
	"fmt"
)

// worker is a single-worker queue: jobs submitted via run execute one at a
// time in arrival order, serializing a session's commands without a
// session-wide lock held across suspension points.
type worker struct {
	jobs chan job
	done chan struct{}
}

type job struct {
	fn     func() error
	result chan error
}

func newWorker() *worker {
	w := &worker{
		jobs: make(chan job, 8),
		done: make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *worker) loop() {
	for {
		select {
		case j := <-w.jobs:
			j.result <- j.fn()
		case <-w.done:
			return
		}
	}
}

// run submits fn and blocks until it has executed or ctx is cancelled.
// Cancellation does not abort fn once it has started running on the
// worker goroutine — only the caller's wait is abandoned.
func (w *worker) run(ctx context.Context, fn func() error) error {
	j := job{fn: fn, result: make(chan error, 1)}

	select {
	case w.jobs <- j:
	case <-w.done:
		return fmt.Errorf("session worker stopped")
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return fmt.Errorf("session worker stopped")
	}
}

func (w *worker) stop() {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
}
