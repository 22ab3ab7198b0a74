package cache

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type getResult string

const (
	resultHit         getResult = "hit"
	resultMiss        getResult = "miss"
	resultCoalesced   getResult = "coalesced"
	resultNotFound    getResult = "not_found"
	resultNegativeHit getResult = "negative_hit"
	resultError       getResult = "error"
)

type cacheMetricsCollection struct {
	getCount       metric.Int64Counter
	lookupDuration metric.Float64Histogram
}

var metrics cacheMetricsCollection

func init() {
	const name = "thingcache/cache"
	meter := otel.Meter(name)

	getCount, err := meter.Int64Counter(
		"cache/get_count",
		metric.WithDescription("Number of cache reads by result"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create get count metric: %w", err))
	}

	lookupDuration, err := meter.Float64Histogram(
		"cache/lookup_duration_seconds",
		metric.WithDescription("Time spent in the backing lookup on a cache miss"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create lookup duration metric: %w", err))
	}

	metrics = cacheMetricsCollection{
		getCount:       getCount,
		lookupDuration: lookupDuration,
	}
}

func recordGet(ctx context.Context, result getResult) {
	metrics.getCount.Add(ctx, 1, metric.WithAttributes(attribute.String("result", string(result))))
}

func recordLookup(ctx context.Context, start time.Time, result getResult) {
	metrics.lookupDuration.Record(
		ctx,
		time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("result", string(result))),
	)
}
