package cache

// Outcome is the result of a lookup: either Found(value) or NotFound.
//
// Failing to resolve a key is not an outcome. Lookups report that through
// their error return instead.
type Outcome[T any] struct {
	value T
	found bool
}

func Found[T any](value T) Outcome[T] {
	return Outcome[T]{value: value, found: true}
}

func NotFound[T any]() Outcome[T] {
	return Outcome[T]{}
}

// Value returns the found value, or the zero value and false for NotFound
func (o Outcome[T]) Value() (T, bool) {
	return o.value, o.found
}

func (o Outcome[T]) IsFound() bool {
	return o.found
}
