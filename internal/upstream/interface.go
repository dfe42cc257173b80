// Package upstream provides the authoritative data sources that cache
// computations fetch from.
package upstream

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrKeyNotFound means the upstream has no data for the key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrUpstreamUnavailable means the upstream failed in a way believed to
	// be intermittent. The fetch may be retried later.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrRatelimited means the fetch was rejected to respect a rate limit,
	// ours or the upstream's.
	ErrRatelimited = errors.New("ratelimited")
)

type Source interface {
	// Fetch returns the payload stored upstream for key.
	//
	// Raises ErrKeyNotFound if the upstream has no data for the key.
	//
	// Raises ErrUpstreamUnavailable if the upstream failed in a way believed
	// to be intermittent. The call may be retried later.
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// Sink is the write side of an upstream that we own the data for.
type Sink interface {
	// Store writes the payload for key, overwriting any previous payload.
	// Subsequent fetches return the new payload.
	Store(ctx context.Context, key string, payload []byte, updatedAt time.Time) error
}
