package store

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// TTLCache is a Store backed by jellydator/ttlcache. The library has no
// atomic fill function or compare-and-swap, so writes serialize through one
// mutex; reads go straight to the underlying cache.
type TTLCache[K comparable, V any] struct {
	writeMu  sync.Mutex
	inner    *ttlcache.Cache[K, V]
	stopOnce sync.Once
}

// NewTTLCache creates a store whose entries expire ttl after their last
// write. A non-positive ttl disables expiry. Call Close to release the
// library's expiry goroutine.
func NewTTLCache[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}

	inner := ttlcache.New[K, V](
		ttlcache.WithTTL[K, V](ttl),
		ttlcache.WithDisableTouchOnHit[K, V](),
	)
	go inner.Start()

	return &TTLCache[K, V]{inner: inner}
}

func (c *TTLCache[K, V]) Len() int {
	return c.inner.Len()
}

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	item := c.inner.Get(key)
	if item == nil {
		var zero V
		return zero, false
	}
	return item.Value(), true
}

func (c *TTLCache[K, V]) Put(key K, value V) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.inner.Set(key, value, ttlcache.DefaultTTL)
}

func (c *TTLCache[K, V]) LoadOrStore(key K, value V) (V, bool) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	item, loaded := c.inner.GetOrSet(key, value)
	return item.Value(), loaded
}

// GetOrCompute runs compute while holding the write mutex, so compute must
// be quick and must not call back into the store.
func (c *TTLCache[K, V]) GetOrCompute(key K, compute func() (V, error)) (V, bool, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if item := c.inner.Get(key); item != nil {
		return item.Value(), true, nil
	}

	value, err := compute()
	if err != nil {
		var zero V
		return zero, false, err
	}

	c.inner.Set(key, value, ttlcache.DefaultTTL)
	return value, false, nil
}

func (c *TTLCache[K, V]) Delete(key K) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.inner.Delete(key)
}

func (c *TTLCache[K, V]) LoadAndDelete(key K) (V, bool) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	item, present := c.inner.GetAndDelete(key)
	if !present || item == nil {
		var zero V
		return zero, false
	}
	return item.Value(), true
}

func (c *TTLCache[K, V]) CompareAndSwap(key K, old, new V) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	item := c.inner.Get(key)
	if item == nil || any(item.Value()) != any(old) {
		return false
	}

	c.inner.Set(key, new, ttlcache.DefaultTTL)
	return true
}

func (c *TTLCache[K, V]) CompareAndDelete(key K, old V) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	item := c.inner.Get(key)
	if item == nil || any(item.Value()) != any(old) {
		return false
	}

	c.inner.Delete(key)
	return true
}

// Range calls fn outside the underlying cache's lock on a point-in-time
// snapshot, so fn may call back into the store.
func (c *TTLCache[K, V]) Range(fn func(key K, value V) bool) {
	var snapshot []kv[K, V]
	c.inner.Range(func(item *ttlcache.Item[K, V]) bool {
		snapshot = append(snapshot, kv[K, V]{key: item.Key(), value: item.Value()})
		return true
	})

	for _, entry := range snapshot {
		if !fn(entry.key, entry.value) {
			return
		}
	}
}

func (c *TTLCache[K, V]) Clear() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.inner.DeleteAll()
}

// DeleteExpired purges every expired entry immediately.
func (c *TTLCache[K, V]) DeleteExpired() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.inner.DeleteExpired()
}

// Close stops the expiry goroutine. Close is idempotent.
func (c *TTLCache[K, V]) Close() {
	c.stopOnce.Do(c.inner.Stop)
}
