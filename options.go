package taskcache

import (
	"context"

	"github.com/Amund211/taskcache/store"
)

type options[K comparable, V any] struct {
	store   store.Store[K, *Task[V]]
	baseCtx context.Context
	name    string
}

// Option configures a Cache.
type Option[K comparable, V any] func(*options[K, V])

// WithStore substitutes the backing store. The store's own construction-time
// ttl governs expiry; the ttl passed to New is ignored. The cache takes
// ownership of the store and closes it on Close.
func WithStore[K comparable, V any](s store.Store[K, *Task[V]]) Option[K, V] {
	return func(o *options[K, V]) {
		o.store = s
	}
}

// WithBaseContext sets the parent context for all computation contexts.
// Values on it, such as a logger, are visible to every computation. Ending
// it cancels all pending computations, as Close does. Defaults to
// context.Background().
func WithBaseContext[K comparable, V any](ctx context.Context) Option[K, V] {
	return func(o *options[K, V]) {
		o.baseCtx = ctx
	}
}

// WithName sets the cache name used in logs and metric attributes. Defaults
// to "taskcache-" plus a random suffix.
func WithName[K comparable, V any](name string) Option[K, V] {
	return func(o *options[K, V]) {
		o.name = name
	}
}
