package taskcache

import (
	"context"
	"sync"
)

// Task is a handle to a pending-or-completed computation. A task settles
// exactly once, with a value, a computation error or ErrCanceled; every
// holder observes the same outcome. Tasks remain valid and awaitable after
// the cache evicts or replaces them.
type Task[V any] struct {
	done chan struct{}

	// value and err are written once, before done is closed
	value V
	err   error

	settleOnce sync.Once

	// ctx is handed to the computation; cancel fires on settlement, which
	// includes cancellation by the cache
	ctx    context.Context
	cancel context.CancelFunc
}

func newPendingTask[V any](parent context.Context) *Task[V] {
	ctx, cancel := context.WithCancel(parent)
	return &Task[V]{
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// NewCompletedTask returns a task that has already succeeded with value.
// The cache stores one in place of the pending task when a computation
// succeeds; it is also useful for seeding caches and for tests.
func NewCompletedTask[V any](value V) *Task[V] {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Task[V]{
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	t.succeed(value)
	return t
}

// succeed settles the task with value. It reports whether this call settled
// the task.
func (t *Task[V]) succeed(value V) bool {
	settled := false
	t.settleOnce.Do(func() {
		t.value = value
		t.cancel()
		close(t.done)
		settled = true
	})
	return settled
}

// fail settles the task with err. It reports whether this call settled the
// task.
func (t *Task[V]) fail(err error) bool {
	settled := false
	t.settleOnce.Do(func() {
		t.err = err
		t.cancel()
		close(t.done)
		settled = true
	})
	return settled
}

// Done returns a channel that is closed once the task has settled.
func (t *Task[V]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task settles or ctx ends, whichever comes first.
// A waiter giving up does not affect the computation or other holders.
func (t *Task[V]) Wait(ctx context.Context) (V, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}
