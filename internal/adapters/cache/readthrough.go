package cache

import (
	"context"
	"time"

	"github.com/Amund211/thingcache/internal/logging"
	"github.com/jellydator/ttlcache/v3"
)

// Lookup is the backing source a ReadThrough fetches from on a miss.
type Lookup[T any] interface {
	// Returns Found(value) if the key resolved and NotFound if it does not exist.
	//
	// Returns an error if the key could not be resolved. Implementations report
	// their own errors.
	TryRead(ctx context.Context, key string) (Outcome[T], error)
}

// LookupFunc adapts a function to the Lookup interface
type LookupFunc[T any] func(ctx context.Context, key string) (Outcome[T], error)

func (f LookupFunc[T]) TryRead(ctx context.Context, key string) (Outcome[T], error) {
	return f(ctx, key)
}

type readThroughOptions struct {
	negativeTTL time.Duration
}

type Option func(*readThroughOptions)

// WithNegativeTTL remembers NotFound outcomes for ttl.
// By default NotFound is never cached and every miss looks the key up again.
func WithNegativeTTL(ttl time.Duration) Option {
	return func(o *readThroughOptions) {
		o.negativeTTL = ttl
	}
}

// ReadThrough caches values from a Lookup.
//
// Once a key is found, every later Get for it returns the same value without
// calling the lookup again, for the lifetime of the ReadThrough.
type ReadThrough[T any] struct {
	store  Cache[T]
	lookup Lookup[T]

	// nil unless negative caching is enabled
	negative *ttlcache.Cache[string, struct{}]
}

func NewReadThrough[T any](store Cache[T], lookup Lookup[T], opts ...Option) *ReadThrough[T] {
	options := readThroughOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	r := &ReadThrough[T]{
		store:  store,
		lookup: lookup,
	}

	if options.negativeTTL > 0 {
		r.negative = ttlcache.New[string, struct{}](
			ttlcache.WithTTL[string, struct{}](options.negativeTTL),
			ttlcache.WithDisableTouchOnHit[string, struct{}](),
		)
		go r.negative.Start()
	}

	return r
}

func (r *ReadThrough[T]) Get(ctx context.Context, key string) (Outcome[T], error) {
	if r.negative != nil && r.negative.Get(key) != nil {
		logging.FromContext(ctx).InfoContext(ctx, "Getting cached value", "cache", "negative hit")
		recordGet(ctx, resultNegativeHit)
		return NotFound[T](), nil
	}

	outcome, err := GetOrCreate(ctx, r.store, key, func(ctx context.Context) (Outcome[T], error) {
		return r.lookup.TryRead(ctx, key)
	})
	if err != nil {
		return NotFound[T](), err
	}

	if !outcome.IsFound() && r.negative != nil {
		r.negative.Set(key, struct{}{}, ttlcache.DefaultTTL)
	}

	return outcome, nil
}

// Stop background work started by the ReadThrough
func (r *ReadThrough[T]) Stop() {
	if r.negative != nil {
		r.negative.Stop()
	}
}
