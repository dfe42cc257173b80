package ports

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Amund211/taskcache"
	"github.com/Amund211/taskcache/executor"
	"github.com/Amund211/taskcache/internal/upstream"
)

func TestStatusCodeForError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		err        error
		statusCode int
		cause      string
	}{
		{name: "nil key", err: taskcache.ErrNilKey, statusCode: http.StatusBadRequest, cause: "Invalid request"},
		{name: "nil computation", err: fmt.Errorf("wrapped: %w", taskcache.ErrNilComputation), statusCode: http.StatusBadRequest, cause: "Invalid request"},
		{name: "not found", err: upstream.ErrKeyNotFound, statusCode: http.StatusNotFound, cause: "Key not found"},
		{name: "ratelimited", err: fmt.Errorf("%w: slow down", upstream.ErrRatelimited), statusCode: http.StatusTooManyRequests, cause: "Ratelimit exceeded"},
		{name: "queue full", err: fmt.Errorf("failed to submit: %w", executor.ErrQueueFull), statusCode: http.StatusServiceUnavailable, cause: "Too many lookups in flight"},
		{name: "stopped executor", err: executor.ErrStopped, statusCode: http.StatusServiceUnavailable, cause: "Too many lookups in flight"},
		{name: "upstream unavailable", err: upstream.ErrUpstreamUnavailable, statusCode: http.StatusBadGateway, cause: "Upstream unavailable"},
		{name: "canceled task", err: taskcache.ErrCanceled, statusCode: statusClientClosedRequest, cause: "Request canceled"},
		{name: "canceled context", err: context.Canceled, statusCode: statusClientClosedRequest, cause: "Request canceled"},
		{name: "unknown", err: fmt.Errorf("boom"), statusCode: http.StatusInternalServerError, cause: "Internal server error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.statusCode, statusCodeForError(tc.err))
			require.Equal(t, tc.cause, causeForError(tc.err))
		})
	}
}

func TestWriteErrorResponse(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	statusCode := writeErrorResponse(context.Background(), w, upstream.ErrKeyNotFound)

	require.Equal(t, http.StatusNotFound, statusCode)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.JSONEq(t, `{"success":false,"cause":"Key not found"}`, w.Body.String())
}

func TestValidateKey(t *testing.T) {
	t.Parallel()

	require.NoError(t, validateKey("key1"))
	require.NoError(t, validateKey("reports/weekly 2024"))

	require.Error(t, validateKey(""))

	long := make([]byte, maxKeyLength+1)
	for i := range long {
		long[i] = 'a'
	}
	require.Error(t, validateKey(string(long)))
	require.NoError(t, validateKey(string(long[1:])))
}
