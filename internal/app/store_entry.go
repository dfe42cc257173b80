package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Amund211/taskcache"
	"github.com/Amund211/taskcache/internal/upstream"
)

// StoreEntry persists a payload upstream and drops any cached task for key,
// so the next lookup serves the new payload.
type StoreEntry func(ctx context.Context, key string, payload []byte) error

func BuildStoreEntry(cache *taskcache.Cache[string, []byte], sink upstream.Sink, nowFunc func() time.Time) StoreEntry {
	return func(ctx context.Context, key string, payload []byte) error {
		if err := sink.Store(ctx, key, payload, nowFunc()); err != nil {
			// NOTE: The cached task is left alone when the write fails, so
			// lookups keep serving the old payload rather than nothing.
			return fmt.Errorf("failed to store entry: %w", err)
		}

		if err := cache.Invalidate(key); err != nil {
			return fmt.Errorf("failed to invalidate stored key: %w", err)
		}

		return nil
	}
}
