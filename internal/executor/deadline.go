package executor

import "context"

// runDeadlined runs fn on its own goroutine and enforces ctx's deadline as
// a hard ceiling: if fn has not returned by the time ctx is done, the
// result is abandoned and context.DeadlineExceeded is returned to the
// caller, which marks the session unhealthy. fn's goroutine keeps
// running in the background since the underlying primitive may not be
// cancellable;
// the leaked goroutine's eventual result is simply discarded.
func runDeadlined[T any](ctx context.Context, fn func() (*T, error)) (*T, error) {
	type out struct {
		v   *T
		err error
	}
	ch := make(chan out, 1)

	go func() {
		v, err := fn()
		ch <- out{v, err}
	}()

	select {
	case o := <-ch:
		return o.v, o.err
	case <-ctx.Done():
		return nil, context.DeadlineExceeded
	}
}
