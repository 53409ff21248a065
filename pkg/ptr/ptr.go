// Package ptr provides utility functions for working with optional values.
package ptr

// Of returns a pointer to the given value.
func Of[T any](v T) *T { return &v }

// Deref returns the value pointed to, or def if p is nil.
func Deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}

	return *p
}

// NonZero returns a pointer to v, or nil when v is the zero value.
// It maps "not given" CLI and form inputs to JSON null.
func NonZero[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}

	return &v
}
