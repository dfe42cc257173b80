package ratelimiting

import (
	"context"
	"slices"
	"sync"
	"time"
)

// windowQuota admits at most limit operations per rolling window, and at
// most limit operations in flight. Admission order is first come, first
// served; an admitted operation whose window share is already used up sleeps
// until the oldest completion leaves the window.
type windowQuota struct {
	limit     int
	window    time.Duration
	nowFunc   func() time.Time
	afterFunc func(time.Duration) <-chan time.Time

	slots chan struct{}

	// completions holds the times the last limit operations finished, in
	// ascending order. Admission consumes the oldest entry and waits out
	// whatever remains of its window.
	completions []time.Time
	mu          sync.Mutex
}

// NewWindowQuota creates a quota of limit operations per rolling window.
// limit must be positive. nowFunc and afterFunc are injected so tests can
// control time; production callers pass time.Now and time.After.
func NewWindowQuota(
	limit int,
	window time.Duration,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
) *windowQuota {
	slots := make(chan struct{}, limit)
	for range limit {
		slots <- struct{}{}
	}

	// Seed the history with completions a full window ago, so the first
	// limit operations are admitted without waiting.
	completions := make([]time.Time, limit)
	seed := nowFunc().Add(-window)
	for i := range completions {
		completions[i] = seed
	}

	return &windowQuota{
		limit:     limit,
		window:    window,
		nowFunc:   nowFunc,
		afterFunc: afterFunc,

		slots:       slots,
		completions: completions,
	}
}

// Limit runs operation once the quota admits it and reports whether it ran.
// It returns false without running the operation if ctx ends first, or if
// ctx's deadline could not accommodate the expected wait plus
// maxOperationTime.
func (q *windowQuota) Limit(ctx context.Context, maxOperationTime time.Duration, operation func()) bool {
	return q.LimitCancelable(ctx, maxOperationTime, func() bool {
		operation()
		return true
	})
}

// LimitCancelable is Limit for operations that can decline to run after
// admission. An operation returning false is not charged against the quota.
func (q *windowQuota) LimitCancelable(ctx context.Context, maxOperationTime time.Duration, operation func() bool) bool {
	select {
	case <-q.slots:
		defer func() {
			q.slots <- struct{}{}
		}()
	case <-ctx.Done():
		return false
	}

	oldest, ok := q.takeOldestCompletion(ctx, maxOperationTime)
	if !ok {
		return false
	}

	// The taken completion must be returned to the history: the operation's
	// own completion time if it ran, the original entry otherwise.
	completion := oldest
	defer func() {
		q.recordCompletion(completion)
	}()

	if wait := q.remainingWindow(oldest); wait > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-q.afterFunc(wait):
		}
	}

	if !operation() {
		return false
	}

	completion = q.nowFunc()
	return true
}

// remainingWindow reports how long until completion falls out of the window.
func (q *windowQuota) remainingWindow(completion time.Time) time.Duration {
	elapsed := q.nowFunc().Sub(completion)
	return q.window - elapsed
}

// takeOldestCompletion removes and returns the oldest completion, or refuses
// when ctx's deadline cannot accommodate the implied wait plus
// maxOperationTime.
func (q *windowQuota) takeOldestCompletion(ctx context.Context, maxOperationTime time.Duration) (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	oldest := q.completions[0]

	if deadline, ok := ctx.Deadline(); ok {
		wait := q.remainingWindow(oldest)
		if wait < 0 {
			wait = 0
		}
		if wait+maxOperationTime > deadline.Sub(q.nowFunc()) {
			return time.Time{}, false
		}
	}

	q.completions = q.completions[1:]
	return oldest, true
}

func (q *windowQuota) recordCompletion(completion time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i, _ := slices.BinarySearchFunc(q.completions, completion, time.Time.Compare)
	q.completions = slices.Insert(q.completions, i, completion)
}
