// Package app wires the cache and the upstream into the operations the HTTP
// handlers expose.
package app

import (
	"context"
	"fmt"

	"github.com/Amund211/taskcache"
	"github.com/Amund211/taskcache/internal/upstream"
)

// Lookup returns the task computing the payload for key, starting an
// upstream fetch when no task is cached or in flight.
type Lookup func(ctx context.Context, key string) (*taskcache.Task[[]byte], error)

func BuildLookup(cache *taskcache.Cache[string, []byte], source upstream.Source) Lookup {
	return func(ctx context.Context, key string) (*taskcache.Task[[]byte], error) {
		task, err := cache.Supply(ctx, key, func(ctx context.Context) ([]byte, error) {
			return source.Fetch(ctx, key)
		})
		if err != nil {
			// NOTE: Supply only fails synchronously, on invalid arguments or
			// a rejected submission. Fetch errors travel in the task.
			return nil, fmt.Errorf("failed to supply lookup: %w", err)
		}

		return task, nil
	}
}
