package taskcache

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type cacheMetricsCollection struct {
	supplyCount     metric.Int64Counter
	completionCount metric.Int64Counter
	evictionCount   metric.Int64Counter
	computeDuration metric.Float64Histogram
}

var metrics cacheMetricsCollection

func init() {
	const name = "taskcache"
	meter := otel.Meter(name)

	supplyCount, err := meter.Int64Counter(
		"taskcache/supply_count",
		metric.WithDescription("Total number of supply calls"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create supply count metric: %w", err))
	}

	completionCount, err := meter.Int64Counter(
		"taskcache/completion_count",
		metric.WithDescription("Total number of settled tasks"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create completion count metric: %w", err))
	}

	evictionCount, err := meter.Int64Counter(
		"taskcache/eviction_count",
		metric.WithDescription("Total number of entries evicted before expiry"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create eviction count metric: %w", err))
	}

	computeDuration, err := meter.Float64Histogram(
		"taskcache/compute_duration_seconds",
		metric.WithDescription("Runtime of submitted computations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create compute duration metric: %w", err))
	}

	metrics = cacheMetricsCollection{
		supplyCount:     supplyCount,
		completionCount: completionCount,
		evictionCount:   evictionCount,
		computeDuration: computeDuration,
	}
}
