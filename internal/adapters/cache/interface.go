package cache

// An in-progress lookup for a single key.
// outcome and err are only read after done is closed.
type flight[T any] struct {
	done    chan struct{}
	outcome Outcome[T]
	err     error
}

func newFlight[T any]() *flight[T] {
	return &flight[T]{done: make(chan struct{})}
}

func (f *flight[T]) finish(outcome Outcome[T], err error) {
	f.outcome = outcome
	f.err = err
	close(f.done)
}

type hitResult[T any] struct {
	data  T
	valid bool

	// Set when the key was missing and the caller now owns the lookup
	claimed bool

	// The lookup to wait for when !valid
	flight *flight[T]
}

// Cache is the store behind a ReadThrough.
//
// getOrClaim must be atomic per key: when the key is missing it installs a new
// flight as the key's claim and reports claimed=true to exactly one caller.
// Callers that find a claim get the same flight back and wait on it.
type Cache[T any] interface {
	getOrClaim(key string) hitResult[T]
	set(key string, data T)
	delete(key string)
}
