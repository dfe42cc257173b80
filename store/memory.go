package store

import (
	"sync"
	"time"
)

type memoryEntry[V any] struct {
	value     V
	writtenAt time.Time
}

type kv[K comparable, V any] struct {
	key   K
	value V
}

// Memory is an in-memory Store backed by a mutex-guarded map with per-entry
// write timestamps. Expired entries are treated as absent by every read and
// are purged by a background sweep; Len may include expired entries until
// the next sweep.
type Memory[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]memoryEntry[V]

	ttl time.Duration
	now func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type memoryOptions struct {
	now           func() time.Time
	sweepInterval time.Duration
	sweepSet      bool
}

type MemoryOption func(*memoryOptions)

// WithNow overrides the clock used for write timestamps and expiry checks.
func WithNow(now func() time.Time) MemoryOption {
	return func(o *memoryOptions) {
		o.now = now
	}
}

// WithSweepInterval overrides the background sweep cadence, which defaults
// to the ttl. A non-positive interval disables the sweep; expired entries
// are then only hidden from reads, never purged, unless DeleteExpired is
// called explicitly.
func WithSweepInterval(interval time.Duration) MemoryOption {
	return func(o *memoryOptions) {
		o.sweepInterval = interval
		o.sweepSet = true
	}
}

// NewMemory creates an empty store whose entries expire ttl after their last
// write. A non-positive ttl disables expiry. Call Close to release the
// background sweep.
func NewMemory[K comparable, V any](ttl time.Duration, options ...MemoryOption) *Memory[K, V] {
	opts := memoryOptions{
		now:           time.Now,
		sweepInterval: ttl,
	}
	for _, option := range options {
		option(&opts)
	}

	m := &Memory[K, V]{
		entries: make(map[K]memoryEntry[V]),
		ttl:     ttl,
		now:     opts.now,
		stop:    make(chan struct{}),
	}

	if ttl > 0 && opts.sweepInterval > 0 {
		go m.sweep(opts.sweepInterval)
	}

	return m
}

func (m *Memory[K, V]) expired(e memoryEntry[V], now time.Time) bool {
	return m.ttl > 0 && now.Sub(e.writtenAt) >= m.ttl
}

func (m *Memory[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

func (m *Memory[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok || m.expired(e, m.now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (m *Memory[K, V]) Put(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry[V]{value: value, writtenAt: m.now()}
}

func (m *Memory[K, V]) LoadOrStore(key K, value V) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok && !m.expired(e, m.now()) {
		return e.value, true
	}

	m.entries[key] = memoryEntry[V]{value: value, writtenAt: m.now()}
	return value, false
}

// GetOrCompute runs compute while holding the store lock, so compute must be
// quick and must not call back into the store.
func (m *Memory[K, V]) GetOrCompute(key K, compute func() (V, error)) (V, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok && !m.expired(e, m.now()) {
		return e.value, true, nil
	}

	value, err := compute()
	if err != nil {
		var zero V
		return zero, false, err
	}

	m.entries[key] = memoryEntry[V]{value: value, writtenAt: m.now()}
	return value, false, nil
}

func (m *Memory[K, V]) Delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
}

func (m *Memory[K, V]) LoadAndDelete(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		var zero V
		return zero, false
	}

	delete(m.entries, key)

	if m.expired(e, m.now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (m *Memory[K, V]) CompareAndSwap(key K, old, new V) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || m.expired(e, m.now()) || any(e.value) != any(old) {
		return false
	}

	m.entries[key] = memoryEntry[V]{value: new, writtenAt: m.now()}
	return true
}

func (m *Memory[K, V]) CompareAndDelete(key K, old V) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || m.expired(e, m.now()) || any(e.value) != any(old) {
		return false
	}

	delete(m.entries, key)
	return true
}

// Range calls fn outside the store lock on a point-in-time snapshot, so fn
// may call back into the store.
func (m *Memory[K, V]) Range(fn func(key K, value V) bool) {
	m.mu.RLock()
	now := m.now()
	snapshot := make([]kv[K, V], 0, len(m.entries))
	for key, e := range m.entries {
		if m.expired(e, now) {
			continue
		}
		snapshot = append(snapshot, kv[K, V]{key: key, value: e.value})
	}
	m.mu.RUnlock()

	for _, entry := range snapshot {
		if !fn(entry.key, entry.value) {
			return
		}
	}
}

func (m *Memory[K, V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.entries)
}

// DeleteExpired purges every expired entry. The background sweep calls this
// periodically; tests with an injected clock can call it directly.
func (m *Memory[K, V]) DeleteExpired() {
	if m.ttl <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, e := range m.entries {
		if m.expired(e, now) {
			delete(m.entries, key)
		}
	}
}

func (m *Memory[K, V]) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.DeleteExpired()
		case <-m.stop:
			return
		}
	}
}

// Close stops the background sweep. Close is idempotent.
func (m *Memory[K, V]) Close() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
}
