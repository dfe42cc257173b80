package ports_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Amund211/taskcache"
	"github.com/Amund211/taskcache/executor"
	"github.com/Amund211/taskcache/internal/ports"
)

func newHandlerTestCache(t *testing.T) *taskcache.Cache[string, []byte] {
	t.Helper()

	cache := taskcache.New[string, []byte](executor.NewAsync(), time.Minute)
	t.Cleanup(cache.Close)
	return cache
}

func populateCache(t *testing.T, cache *taskcache.Cache[string, []byte], key string, payload []byte) {
	t.Helper()

	task, err := cache.Supply(context.Background(), key, func(ctx context.Context) ([]byte, error) {
		return payload, nil
	})
	require.NoError(t, err)

	_, err = task.Wait(context.Background())
	require.NoError(t, err)
}

func TestMakeInvalidateKeyHandler(t *testing.T) {
	t.Parallel()

	testLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	noopMiddleware := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			h(w, r)
		}
	}

	makeRequest := func(key string) *http.Request {
		req := httptest.NewRequest(http.MethodDelete, "/v1/lookup/"+key, nil)
		req.SetPathValue("key", key)
		return req
	}

	t.Run("removes the entry for the key", func(t *testing.T) {
		t.Parallel()

		cache := newHandlerTestCache(t)
		populateCache(t, cache, "reports/weekly", []byte(`{"total":1}`))
		populateCache(t, cache, "reports/monthly", []byte(`{"total":2}`))

		handler := ports.MakeInvalidateKeyHandler(cache, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, makeRequest("reports/weekly"))

		require.Equal(t, http.StatusNoContent, w.Code)
		require.Empty(t, w.Body.String())
		require.Equal(t, 1, cache.Size())

		task, err := cache.Get("reports/monthly")
		require.NoError(t, err)
		require.NotNil(t, task)
	})

	t.Run("unknown keys are a no-op", func(t *testing.T) {
		t.Parallel()

		cache := newHandlerTestCache(t)
		handler := ports.MakeInvalidateKeyHandler(cache, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, makeRequest("never-seen"))

		require.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("invalid key is rejected", func(t *testing.T) {
		t.Parallel()

		cache := newHandlerTestCache(t)
		handler := ports.MakeInvalidateKeyHandler(cache, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, makeRequest(""))

		require.Equal(t, http.StatusBadRequest, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"Invalid key"}`, w.Body.String())
	})

	t.Run("a pending task is settled as canceled", func(t *testing.T) {
		t.Parallel()

		cache := newHandlerTestCache(t)

		block := make(chan struct{})
		t.Cleanup(func() { close(block) })

		task, err := cache.Supply(context.Background(), "reports/weekly", func(ctx context.Context) ([]byte, error) {
			<-block
			return nil, nil
		})
		require.NoError(t, err)

		handler := ports.MakeInvalidateKeyHandler(cache, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, makeRequest("reports/weekly"))

		require.Equal(t, http.StatusNoContent, w.Code)
		require.True(t, cache.IsEmpty())

		_, err = task.Wait(context.Background())
		require.ErrorIs(t, err, taskcache.ErrCanceled)
	})
}

func TestMakeInvalidateAllHandler(t *testing.T) {
	t.Parallel()

	testLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	noopMiddleware := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			h(w, r)
		}
	}

	t.Run("clears every entry", func(t *testing.T) {
		t.Parallel()

		cache := newHandlerTestCache(t)
		for i := range 3 {
			populateCache(t, cache, fmt.Sprintf("reports/%d", i), []byte(`{}`))
		}
		require.Equal(t, 3, cache.Size())

		handler := ports.MakeInvalidateAllHandler(cache, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/cache", nil))

		require.Equal(t, http.StatusNoContent, w.Code)
		require.Empty(t, w.Body.String())
		require.True(t, cache.IsEmpty())
	})

	t.Run("empty cache is a no-op", func(t *testing.T) {
		t.Parallel()

		cache := newHandlerTestCache(t)
		handler := ports.MakeInvalidateAllHandler(cache, testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/cache", nil))

		require.Equal(t, http.StatusNoContent, w.Code)
		require.True(t, cache.IsEmpty())
	})
}
