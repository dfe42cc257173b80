package ports

import (
	"log/slog"
	"net/http"

	"github.com/Amund211/taskcache"
	"github.com/Amund211/taskcache/internal/ratelimiting"
	"github.com/Amund211/taskcache/internal/reporting"
	"github.com/Amund211/taskcache/logging"
)

func MakeInvalidateKeyHandler(
	cache *taskcache.Cache[string, []byte],
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
		buildMetricsMiddleware("invalidate_key"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("invalidate_key"),
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

		if err := cache.Invalidate(key); err != nil {
			logging.FromContext(ctx).Error("Failed to invalidate key", "error", err.Error())
			statusCode := writeErrorResponse(ctx, w, err)
			logging.FromContext(ctx).Info("Returning response", "statusCode", statusCode, "reason", "error")
			return
		}

		logging.FromContext(ctx).Info("Returning response", "statusCode", http.StatusNoContent, "reason", "success")
		w.WriteHeader(http.StatusNoContent)
	}

	return middleware(handler)
}

func MakeInvalidateAllHandler(
	cache *taskcache.Cache[string, []byte],
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(1),
		ratelimiting.BurstSize(60),
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
		buildMetricsMiddleware("invalidate_all"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("invalidate_all"),
		NewRateLimitMiddleware(ipRateLimiter, onLimitExceeded),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		size := cache.Size()
		cache.InvalidateAll()

		logging.FromContext(ctx).Info("Invalidated all entries", "statusCode", http.StatusNoContent, "reason", "success", "evicted", size)
		w.WriteHeader(http.StatusNoContent)
	}

	return middleware(handler)
}
