package advisor

import (
	"log/slog"
)

// Fetch is the outcome of one best-effort lookup: either the real value, or a
// stand-in default together with the error that forced it.
type Fetch[T any] struct {
	Value T
	Err   error
}

// Ok wraps a successfully fetched value.
func Ok[T any](v T) Fetch[T] {
	return Fetch[T]{Value: v}
}

// Degraded wraps the default used in place of a failed lookup.
func Degraded[T any](fallback T, err error) Fetch[T] {
	return Fetch[T]{Value: fallback, Err: err}
}

// IsDegraded reports whether the value is a stand-in.
func (f Fetch[T]) IsDegraded() bool {
	return f.Err != nil
}

// fetch runs fn and degrades to fallback on error, logging what was lost.
func fetch[T any](logger *slog.Logger, name string, fallback T, fn func() (T, error)) Fetch[T] {
	v, err := fn()
	if err != nil {
		logger.Warn("Context lookup failed, using default", "source", name, "error", err)
		return Degraded(fallback, err)
	}
	return Ok(v)
}
