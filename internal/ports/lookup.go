package ports

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Amund211/taskcache/internal/app"
	"github.com/Amund211/taskcache/internal/ratelimiting"
	"github.com/Amund211/taskcache/internal/reporting"
	"github.com/Amund211/taskcache/logging"
)

const maxKeyLength = 512

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key is empty")
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("key exceeds %d bytes", maxKeyLength)
	}
	return nil
}

func MakeLookupHandler(
	lookup app.Lookup,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(8),
		ratelimiting.BurstSize(480),
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
		buildMetricsMiddleware("lookup"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("lookup"),
		BuildCORSMiddleware(allowedOrigins),
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

		task, err := lookup(ctx, key)
		if err != nil {
			logging.FromContext(ctx).Error("Failed to start lookup", "error", err.Error())
			statusCode := writeErrorResponse(ctx, w, err)
			logging.FromContext(ctx).Info("Returning response", "statusCode", statusCode, "reason", "error")
			return
		}

		payload, err := task.Wait(ctx)
		if err != nil {
			logging.FromContext(ctx).Error("Lookup failed", "error", err.Error())
			statusCode := writeErrorResponse(ctx, w, err)
			logging.FromContext(ctx).Info("Returning response", "statusCode", statusCode, "reason", "error")
			return
		}

		logging.FromContext(ctx).Info("Returning response", "statusCode", http.StatusOK, "reason", "success", "contentLength", len(payload))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(payload); err != nil {
			logging.FromContext(ctx).Error("Failed to write response", "error", err.Error())
			reporting.Report(ctx, fmt.Errorf("failed to write lookup response: %w", err))
		}
	}

	return middleware(handler)
}
