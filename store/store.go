// Package store provides keyed concurrent containers with optional
// time-based expiry, used as the backing storage for taskcache.
//
// All implementations are safe for concurrent use without external locking.
// Entries expire a fixed duration after their last write; an expired entry
// is never observable as live, and is purged from size accounting by the
// implementation's sweep.
package store

// Store is a thread-safe associative container.
//
// GetOrCompute is the linchpin: under concurrent calls for the same key,
// compute runs at most once and every caller observes the same stored value.
//
// CompareAndSwap and CompareAndDelete compare values with ==, so stored
// values must be comparable when those operations are used. Len, Get and
// Range may be momentarily stale relative to in-flight writes.
type Store[K comparable, V any] interface {
	// Len reports the number of entries currently stored.
	Len() int

	// Get returns the value stored for key, if any.
	Get(key K) (V, bool)

	// Put unconditionally inserts or overwrites the value for key.
	Put(key K, value V)

	// LoadOrStore stores value if no entry exists for key. It returns the
	// value now stored and whether an entry already existed.
	LoadOrStore(key K, value V) (V, bool)

	// GetOrCompute returns the existing value for key if present. Otherwise
	// it invokes compute exactly once, stores its result and returns it.
	// If compute fails nothing is stored and the error is returned.
	GetOrCompute(key K, compute func() (V, error)) (V, bool, error)

	// Delete removes the entry for key, if any.
	Delete(key K)

	// LoadAndDelete removes the entry for key, returning what was removed.
	LoadAndDelete(key K) (V, bool)

	// CompareAndSwap replaces the value for key with new only if the stored
	// value equals old. It reports whether the swap happened.
	CompareAndSwap(key K, old, new V) bool

	// CompareAndDelete removes the entry for key only if the stored value
	// equals old. It reports whether the entry was removed.
	CompareAndDelete(key K, old V) bool

	// Range calls fn for each entry until fn returns false. It does not
	// represent a consistent snapshot under concurrent mutation.
	Range(fn func(key K, value V) bool)

	// Clear removes every entry.
	Clear()

	// Close releases any background resources, such as expiry sweeps.
	// The store must not be used after Close.
	Close()
}
