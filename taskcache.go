// Package taskcache memoizes asynchronous computations per key.
//
// At most one computation is in flight per key at any time; concurrent
// suppliers share the task for that computation. A successful result stays
// cached until a time-based expiry measured from completion, while a failed
// computation is evicted immediately so the next supply retries it.
package taskcache

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Amund211/taskcache/executor"
	"github.com/Amund211/taskcache/logging"
	"github.com/Amund211/taskcache/store"
)

// Cache maps keys to tasks backed by a Store and an Executor. All methods
// are safe for concurrent use. The executor is shared and externally owned;
// the cache never shuts it down.
type Cache[K comparable, V any] struct {
	store store.Store[K, *Task[V]]
	exec  executor.Executor
	name  string

	// baseCtx parents every pending task's context, so Close cancels all
	// in-flight computations at once
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New creates a cache whose successful results expire ttl after completion,
// backed by an in-memory store unless WithStore overrides it. Call Close to
// dispose of the cache and its store.
func New[K comparable, V any](exec executor.Executor, ttl time.Duration, opts ...Option[K, V]) *Cache[K, V] {
	o := options[K, V]{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.store == nil {
		o.store = store.NewMemory[K, *Task[V]](ttl)
	}
	if o.baseCtx == nil {
		o.baseCtx = context.Background()
	}
	if o.name == "" {
		o.name = "taskcache-" + uuid.NewString()[:8]
	}

	baseCtx, cancelBase := context.WithCancel(o.baseCtx)

	return &Cache[K, V]{
		store:      o.store,
		exec:       exec,
		name:       o.name,
		baseCtx:    baseCtx,
		cancelBase: cancelBase,
	}
}

// Supply returns the task for key, starting a new computation when none is
// pending or cached. The computation runs on the executor with a context
// canceled by Invalidate and Close; it never runs on the calling goroutine,
// and Supply never waits for it to finish. An executor rejection is returned
// as an error and leaves no entry behind.
func (c *Cache[K, V]) Supply(ctx context.Context, key K, computation func(context.Context) (V, error)) (*Task[V], error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if computation == nil {
		return nil, ErrNilComputation
	}

	task, loaded, err := c.store.GetOrCompute(key, func() (*Task[V], error) {
		task := newPendingTask[V](c.baseCtx)
		if err := c.exec.Execute(func() {
			c.runComputation(key, task, computation)
		}); err != nil {
			// Nobody holds the rejected task; release its context
			task.cancel()
			return nil, fmt.Errorf("failed to submit computation: %w", err)
		}
		return task, nil
	})
	if err != nil {
		c.recordSupply(ctx, "rejected")
		return nil, err
	}

	outcome := "started"
	if loaded {
		outcome = "joined"
		select {
		case <-task.Done():
			outcome = "hit"
		default:
		}
	}

	logging.FromContext(ctx).DebugContext(ctx, "Supplied computation", "cache", c.name, "outcome", outcome)
	c.recordSupply(ctx, outcome)

	return task, nil
}

// Get returns the task for key, or nil when no entry exists. It never
// starts a computation.
func (c *Cache[K, V]) Get(key K) (*Task[V], error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	task, ok := c.store.Get(key)
	if !ok {
		return nil, nil
	}
	return task, nil
}

// Lookup is the presence-aware variant of Get, for callers that prefer a
// found flag over a nil check.
func (c *Cache[K, V]) Lookup(key K) (*Task[V], bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}

	task, ok := c.store.Get(key)
	return task, ok, nil
}

// Invalidate removes the entry for key. A still-pending task is settled
// with ErrCanceled and its computation's context is canceled; cancellation
// is advisory and the computation may keep running, but its result is
// discarded.
func (c *Cache[K, V]) Invalidate(key K) error {
	if err := validateKey(key); err != nil {
		return err
	}

	task, ok := c.store.LoadAndDelete(key)
	if !ok {
		return nil
	}

	c.cancelTask(task)
	c.recordEviction(c.baseCtx, "invalidate", 1)

	return nil
}

// InvalidateAll removes every entry and cancels the removed tasks that are
// still pending. Entries inserted concurrently with InvalidateAll may be
// removed without being canceled.
func (c *Cache[K, V]) InvalidateAll() {
	var tasks []*Task[V]
	c.store.Range(func(_ K, task *Task[V]) bool {
		tasks = append(tasks, task)
		return true
	})

	c.store.Clear()

	for _, task := range tasks {
		c.cancelTask(task)
	}

	if len(tasks) > 0 {
		c.recordEviction(c.baseCtx, "invalidate_all", len(tasks))
	}
}

// Size reports the number of entries, pending or completed. The count may
// include expired entries not yet purged by the store's sweep.
func (c *Cache[K, V]) Size() int {
	return c.store.Len()
}

func (c *Cache[K, V]) IsEmpty() bool {
	return c.store.Len() == 0
}

// Close cancels every pending computation, removes all entries and closes
// the store, releasing its sweep resources. The cache must not be used
// after Close.
func (c *Cache[K, V]) Close() {
	c.cancelBase()
	c.InvalidateAll()
	c.store.Close()
}

// runComputation executes the computation on the worker goroutine and
// performs the completion write-back. Success swaps the pending task for a
// completed one, restarting the store's expiry clock at completion time.
// Failure removes the entry so the next supply retries. Both write-backs
// are conditional on the exact pending task, so they cannot clobber an
// entry created after a racing invalidation.
func (c *Cache[K, V]) runComputation(key K, task *Task[V], computation func(context.Context) (V, error)) {
	start := time.Now()

	value, err := func() (value V, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("computation panicked: %v", r)
			}
		}()
		return computation(task.ctx)
	}()

	duration := time.Since(start)
	logger := logging.FromContext(c.baseCtx)

	if err != nil {
		if task.fail(err) {
			c.recordCompletion(c.baseCtx, "failure", duration)
			if c.store.CompareAndDelete(key, task) {
				c.recordEviction(c.baseCtx, "failure", 1)
			}
			logger.Debug("Computation failed", "cache", c.name, "error", err.Error())
		} else {
			// Canceled before the failure landed; the entry is already gone
			c.recordComputeDuration(c.baseCtx, "canceled", duration)
		}
		return
	}

	if task.succeed(value) {
		c.recordCompletion(c.baseCtx, "success", duration)
		c.store.CompareAndSwap(key, task, NewCompletedTask(value))
		logger.Debug("Computation succeeded", "cache", c.name)
	} else {
		// Canceled mid-flight; discard the result
		c.recordComputeDuration(c.baseCtx, "canceled", duration)
	}
}

// cancelTask settles a removed task as canceled. Settling cancels the
// computation's context as a best-effort stop signal. Already-settled tasks
// are left untouched.
func (c *Cache[K, V]) cancelTask(task *Task[V]) {
	if task.fail(ErrCanceled) {
		metrics.completionCount.Add(c.baseCtx, 1, metric.WithAttributes(
			attribute.String("cache", c.name),
			attribute.String("status", "canceled"),
		))
	}
}

func (c *Cache[K, V]) recordSupply(ctx context.Context, outcome string) {
	metrics.supplyCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", c.name),
		attribute.String("outcome", outcome),
	))
}

func (c *Cache[K, V]) recordCompletion(ctx context.Context, status string, duration time.Duration) {
	metrics.completionCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", c.name),
		attribute.String("status", status),
	))
	c.recordComputeDuration(ctx, status, duration)
}

func (c *Cache[K, V]) recordComputeDuration(ctx context.Context, status string, duration time.Duration) {
	metrics.computeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("cache", c.name),
		attribute.String("status", status),
	))
}

func (c *Cache[K, V]) recordEviction(ctx context.Context, reason string, count int) {
	metrics.evictionCount.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("cache", c.name),
		attribute.String("reason", reason),
	))
}

// validateKey rejects keys that are nil at runtime. Keys of value kinds can
// never be nil and always pass.
func validateKey[K comparable](key K) error {
	v := reflect.ValueOf(key)
	if !v.IsValid() {
		// K is an interface type holding nil
		return ErrNilKey
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		if v.IsNil() {
			return ErrNilKey
		}
	}

	return nil
}
