package ports

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Amund211/taskcache/internal/app"
	"github.com/Amund211/taskcache/internal/ratelimiting"
	"github.com/Amund211/taskcache/internal/reporting"
	"github.com/Amund211/taskcache/logging"
)

// maxEntryBytes bounds the accepted payload size for seeded entries.
const maxEntryBytes = 1 << 20

func MakeStoreEntryHandler(
	storeEntry app.StoreEntry,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(2),
		ratelimiting.BurstSize(120),
	)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		ratelimiting.IPKeyFunc,
	)

	onLimitExceeded := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logging.FromContext(ctx).Info("Rate limit exceeded", "statusCode", http.StatusTooManyRequests, "key", ipRateLimiter.KeyFor(r))
		writeErrorCause(ctx, w, "Rate limit exceeded", http.StatusTooManyRequests)
	}

	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("store_entry"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("store_entry"),
		NewRateLimitMiddleware(ipRateLimiter, onLimitExceeded),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		key := r.PathValue("key")
		ctx = logging.AddMetaToContext(ctx, slog.String("key", key))
		ctx = reporting.SetKeyInContext(ctx, key)

		if err := validateKey(key); err != nil {
			statusCode := http.StatusBadRequest
			logging.FromContext(ctx).Info("Invalid key. Returning error", "statusCode", statusCode, "reason", "invalid key")
			writeErrorCause(ctx, w, "Invalid key", statusCode)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxEntryBytes)
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				statusCode := http.StatusRequestEntityTooLarge
				logging.FromContext(ctx).Info("Payload too large. Returning error", "statusCode", statusCode, "limit", maxBytesErr.Limit)
				writeErrorCause(ctx, w, "Payload too large", statusCode)
				return
			}
			statusCode := http.StatusBadRequest
			logging.FromContext(ctx).Info("Failed to read request body. Returning error", "statusCode", statusCode, "error", err.Error())
			writeErrorCause(ctx, w, "Failed to read request body", statusCode)
			return
		}
		if len(payload) == 0 {
			statusCode := http.StatusBadRequest
			logging.FromContext(ctx).Info("Empty payload. Returning error", "statusCode", statusCode, "reason", "empty payload")
			writeErrorCause(ctx, w, "Empty payload", statusCode)
			return
		}

		ctx = reporting.AddExtrasToContext(ctx, map[string]string{
			"contentLength": strconv.Itoa(len(payload)),
		})

		if err := storeEntry(ctx, key, payload); err != nil {
			logging.FromContext(ctx).Error("Failed to store entry", "error", err.Error())
			statusCode := writeErrorResponse(ctx, w, err)
			logging.FromContext(ctx).Info("Returning response", "statusCode", statusCode, "reason", "error")
			return
		}

		logging.FromContext(ctx).Info("Returning response", "statusCode", http.StatusNoContent, "reason", "success", "contentLength", len(payload))
		w.WriteHeader(http.StatusNoContent)
	}

	return middleware(handler)
}
