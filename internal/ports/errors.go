package ports

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Amund211/taskcache"
	"github.com/Amund211/taskcache/executor"
	"github.com/Amund211/taskcache/internal/upstream"
	"github.com/Amund211/taskcache/logging"
)

// statusClientClosedRequest is nginx's non-standard status for requests
// abandoned by the client before a response was written.
const statusClientClosedRequest = 499

type errorResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

func statusCodeForError(err error) int {
	switch {
	case errors.Is(err, taskcache.ErrNilKey), errors.Is(err, taskcache.ErrNilComputation):
		return http.StatusBadRequest
	case errors.Is(err, upstream.ErrKeyNotFound):
		return http.StatusNotFound
	case errors.Is(err, upstream.ErrRatelimited):
		return http.StatusTooManyRequests
	case errors.Is(err, executor.ErrQueueFull), errors.Is(err, executor.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, upstream.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, taskcache.ErrCanceled), errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func causeForError(err error) string {
	switch {
	case errors.Is(err, taskcache.ErrNilKey), errors.Is(err, taskcache.ErrNilComputation):
		return "Invalid request"
	case errors.Is(err, upstream.ErrKeyNotFound):
		return "Key not found"
	case errors.Is(err, upstream.ErrRatelimited):
		return "Ratelimit exceeded"
	case errors.Is(err, executor.ErrQueueFull), errors.Is(err, executor.ErrStopped):
		return "Too many lookups in flight"
	case errors.Is(err, upstream.ErrUpstreamUnavailable):
		return "Upstream unavailable"
	case errors.Is(err, taskcache.ErrCanceled), errors.Is(err, context.Canceled):
		return "Request canceled"
	default:
		return "Internal server error"
	}
}

// writeErrorResponse writes the JSON error envelope for err and returns the
// status code it chose.
func writeErrorResponse(ctx context.Context, w http.ResponseWriter, err error) int {
	statusCode := statusCodeForError(err)
	writeErrorCause(ctx, w, causeForError(err), statusCode)
	return statusCode
}

func writeErrorCause(ctx context.Context, w http.ResponseWriter, cause string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	data, err := json.Marshal(errorResponse{Success: false, Cause: cause})
	if err != nil {
		logging.FromContext(ctx).ErrorContext(ctx, "Failed to marshal error response", "error", err.Error())
		w.Write([]byte(`{"success":false,"cause":"Internal server error"}`))
		return
	}

	w.Write(data)
}
