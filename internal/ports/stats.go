package ports

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Amund211/taskcache"
	"github.com/Amund211/taskcache/internal/ratelimiting"
	"github.com/Amund211/taskcache/internal/reporting"
	"github.com/Amund211/taskcache/logging"
)

type cacheStatsResponse struct {
	Success bool `json:"success"`
	Size    int  `json:"size"`
	Empty   bool `json:"empty"`
}

func MakeCacheStatsHandler(
	cache *taskcache.Cache[string, []byte],
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(4),
		ratelimiting.BurstSize(240),
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
		buildMetricsMiddleware("cache_stats"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("cache_stats"),
		BuildCORSMiddleware(allowedOrigins),
		NewRateLimitMiddleware(ipRateLimiter, onLimitExceeded),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		stats := cacheStatsResponse{
			Success: true,
			Size:    cache.Size(),
			Empty:   cache.IsEmpty(),
		}

		data, err := json.Marshal(stats)
		if err != nil {
			logging.FromContext(ctx).Error("Failed to marshal stats response", "error", err.Error())
			reporting.Report(ctx, fmt.Errorf("failed to marshal stats response: %w", err))
			writeErrorCause(ctx, w, "Internal server error", http.StatusInternalServerError)
			return
		}

		logging.FromContext(ctx).Info("Returning response", "statusCode", http.StatusOK, "reason", "success", "size", stats.Size)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}

	return middleware(handler)
}
