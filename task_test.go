package taskcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireSettled[V any](t *testing.T, task *Task[V]) {
	t.Helper()
	select {
	case <-task.Done():
	default:
		t.Fatal("task is not settled")
	}
}

func requirePending[V any](t *testing.T, task *Task[V]) {
	t.Helper()
	select {
	case <-task.Done():
		t.Fatal("task is settled")
	default:
	}
}

func TestNewCompletedTask(t *testing.T) {
	t.Parallel()

	task := NewCompletedTask("data1")

	requireSettled(t, task)

	value, err := task.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "data1", value)
}

func TestTaskSettlesExactlyOnce(t *testing.T) {
	t.Parallel()

	t.Run("succeed wins over later fail", func(t *testing.T) {
		t.Parallel()

		task := newPendingTask[string](context.Background())

		require.True(t, task.succeed("data1"))
		require.False(t, task.fail(errors.New("error1")))

		value, err := task.Wait(context.Background())
		require.NoError(t, err)
		require.Equal(t, "data1", value)
	})

	t.Run("fail wins over later succeed", func(t *testing.T) {
		t.Parallel()

		task := newPendingTask[string](context.Background())
		settleErr := errors.New("error1")

		require.True(t, task.fail(settleErr))
		require.False(t, task.succeed("data1"))

		_, err := task.Wait(context.Background())
		require.ErrorIs(t, err, settleErr)
	})

	t.Run("concurrent settlers agree on a single winner", func(t *testing.T) {
		t.Parallel()

		task := newPendingTask[int](context.Background())

		wins := make(chan int, 20)
		wg := sync.WaitGroup{}
		for i := 0; i < 10; i++ {
			i := i
			wg.Add(2)
			go func() {
				defer wg.Done()
				if task.succeed(i) {
					wins <- i
				}
			}()
			go func() {
				defer wg.Done()
				if task.fail(errors.New("lost the race")) {
					wins <- -1
				}
			}()
		}
		wg.Wait()
		close(wins)

		winners := []int{}
		for w := range wins {
			winners = append(winners, w)
		}
		require.Len(t, winners, 1)

		value, err := task.Wait(context.Background())
		if winners[0] == -1 {
			require.Error(t, err)
		} else {
			require.NoError(t, err)
			require.Equal(t, winners[0], value)
		}
	})
}

func TestTaskWait(t *testing.T) {
	t.Parallel()

	t.Run("blocks until the task settles", func(t *testing.T) {
		t.Parallel()

		task := newPendingTask[string](context.Background())

		results := make(chan string, 5)
		for i := 0; i < 5; i++ {
			go func() {
				value, err := task.Wait(context.Background())
				assert.NoError(t, err)
				results <- value
			}()
		}

		requirePending(t, task)
		task.succeed("data1")

		for i := 0; i < 5; i++ {
			require.Equal(t, "data1", <-results)
		}
	})

	t.Run("a waiter giving up does not settle the task", func(t *testing.T) {
		t.Parallel()

		task := newPendingTask[string](context.Background())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := task.Wait(ctx)
		require.ErrorIs(t, err, context.Canceled)
		requirePending(t, task)

		task.succeed("data1")
		value, err := task.Wait(context.Background())
		require.NoError(t, err)
		require.Equal(t, "data1", value)
	})

	t.Run("returns immediately once settled", func(t *testing.T) {
		t.Parallel()

		task := newPendingTask[string](context.Background())
		task.fail(errors.New("error1"))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_, err := task.Wait(ctx)
		require.EqualError(t, err, "error1")
	})
}

func TestTaskContextEndsOnSettlement(t *testing.T) {
	t.Parallel()

	t.Run("on success", func(t *testing.T) {
		t.Parallel()

		task := newPendingTask[string](context.Background())
		require.NoError(t, task.ctx.Err())

		task.succeed("data1")
		require.ErrorIs(t, task.ctx.Err(), context.Canceled)
	})

	t.Run("on failure", func(t *testing.T) {
		t.Parallel()

		task := newPendingTask[string](context.Background())
		task.fail(errors.New("error1"))
		require.ErrorIs(t, task.ctx.Err(), context.Canceled)
	})

	t.Run("when the parent context ends the task stays pending", func(t *testing.T) {
		t.Parallel()

		parent, cancel := context.WithCancel(context.Background())
		task := newPendingTask[string](parent)

		cancel()

		// The computation sees the cancellation, but only its result or
		// an explicit settlement ends the task.
		require.ErrorIs(t, task.ctx.Err(), context.Canceled)
		requirePending(t, task)
	})
}
