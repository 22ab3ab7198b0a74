package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/Amund211/thingcache/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer = otel.Tracer("thingcache/cache")

// GetOrCreate returns the value stored for key, or calls create to look it up.
//
// create is called at most once for any number of concurrent callers missing the
// same key. Only Found outcomes are stored. NotFound and errors release the
// claim so the next call looks the key up again.
//
// Callers that joined another caller's lookup share its value or error, but
// retry on NotFound since absence is never cached.
//
// Cancelling ctx makes this caller return ctx.Err(), but the lookup itself keeps
// running so that other callers waiting for the same key still get the result.
func GetOrCreate[T any](ctx context.Context, cache Cache[T], key string, create func(context.Context) (Outcome[T], error)) (Outcome[T], error) {
	logger := logging.FromContext(ctx)

	for {
		result := cache.getOrClaim(key)
		if result.valid {
			logger.InfoContext(ctx, "Getting cached value", "cache", "hit")
			recordGet(ctx, resultHit)
			return Found(result.data), nil
		}

		if result.claimed {
			logger.InfoContext(ctx, "Getting cached value", "cache", "miss")
			recordGet(ctx, resultMiss)
			go fill(context.WithoutCancel(ctx), cache, key, result.flight, create)
		} else {
			logger.InfoContext(ctx, "Waiting for cache", "cache", "wait")
			recordGet(ctx, resultCoalesced)
		}

		select {
		case <-result.flight.done:
		case <-ctx.Done():
			return NotFound[T](), fmt.Errorf("stopped waiting for cache entry: %w", ctx.Err())
		}

		if result.flight.err != nil {
			return NotFound[T](), fmt.Errorf("failed to create cache entry: %w", result.flight.err)
		}

		if !result.claimed && !result.flight.outcome.IsFound() {
			// Absence is not cached, so look again. Every round has a claimant that returns.
			logger.InfoContext(ctx, "Retrying lookup after shared not found")
			continue
		}

		return result.flight.outcome, nil
	}
}

// fill runs the lookup for a claimed key and settles the claim.
// The store is updated before waiters are released.
func fill[T any](ctx context.Context, cache Cache[T], key string, f *flight[T], create func(context.Context) (Outcome[T], error)) {
	ctx, span := tracer.Start(ctx, "ReadThrough.lookup", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	start := time.Now()
	outcome, err := safeCreate(ctx, create)

	switch {
	case err != nil:
		span.SetStatus(codes.Error, err.Error())
		recordLookup(ctx, start, resultError)
		cache.delete(key)
	case outcome.IsFound():
		recordLookup(ctx, start, resultMiss)
		value, _ := outcome.Value()
		cache.set(key, value)
	default:
		recordLookup(ctx, start, resultNotFound)
		cache.delete(key)
	}

	f.finish(outcome, err)
}

func safeCreate[T any](ctx context.Context, create func(context.Context) (Outcome[T], error)) (outcome Outcome[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = NotFound[T]()
			err = fmt.Errorf("lookup panicked: %v", r)
		}
	}()

	return create(ctx)
}
