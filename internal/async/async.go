// Package async presents strata store operations as channels. A Single
// delivers exactly one value or one error, a Maybe delivers at most one value
// or one error, and a Multi streams zero or more values followed by at most
// one error. Errors pass through unchanged, so errors.Is still classifies
// them against the domain sentinels.
package async

import (
	"context"
)

// Result carries the outcome of a Single or Maybe.
type Result[T any] struct {
	Value T
	Found bool
	Err   error
}

// Single delivers exactly one Result with either Value or Err set.
type Single[T any] struct {
	ch <-chan Result[T]
}

// Go runs fn on its own goroutine and delivers its outcome.
func Go[T any](fn func() (T, error)) Single[T] {
	ch := make(chan Result[T], 1)
	go func() {
		v, err := fn()
		if err != nil {
			var zero T
			ch <- Result[T]{Value: zero, Err: err}
			return
		}
		ch <- Result[T]{Value: v, Found: true}
	}()
	return Single[T]{ch: ch}
}

// C returns the channel the result is delivered on. It is buffered and
// receives exactly one Result.
func (s Single[T]) C() <-chan Result[T] { return s.ch }

// Await blocks until the value, the error, or ctx is done.
func (s Single[T]) Await(ctx context.Context) (T, error) {
	select {
	case r := <-s.ch:
		return r.Value, r.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Maybe delivers one Result whose Found reports whether a value exists.
type Maybe[T any] struct {
	ch <-chan Result[T]
}

// GoMaybe runs fn on its own goroutine and delivers its outcome.
func GoMaybe[T any](fn func() (T, bool, error)) Maybe[T] {
	ch := make(chan Result[T], 1)
	go func() {
		v, ok, err := fn()
		if err != nil || !ok {
			var zero T
			ch <- Result[T]{Value: zero, Err: err}
			return
		}
		ch <- Result[T]{Value: v, Found: true}
	}()
	return Maybe[T]{ch: ch}
}

// C returns the channel the result is delivered on.
func (m Maybe[T]) C() <-chan Result[T] { return m.ch }

// Await blocks until the outcome or ctx is done.
func (m Maybe[T]) Await(ctx context.Context) (T, bool, error) {
	select {
	case r := <-m.ch:
		return r.Value, r.Found, r.Err
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}

// Multi streams values followed by at most one error. Values is closed once
// the stream ends; Errors then receives the error, if any, and is closed.
//
// Values is unbuffered: the caller must drain it, through Values or Collect,
// or cancel the context passed to Stream. A Multi dropped with neither keeps
// its producer goroutine blocked.
type Multi[T any] struct {
	values <-chan T
	errs   <-chan error
}

// Stream runs fn on its own goroutine. An error from fn is reported with no
// values delivered. Cancelling ctx stops delivery and reports ctx.Err().
func Stream[T any](ctx context.Context, fn func() ([]T, error)) Multi[T] {
	values := make(chan T)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(values)
		items, err := fn()
		if err != nil {
			errs <- err
			return
		}
		for _, item := range items {
			select {
			case values <- item:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()
	return Multi[T]{values: values, errs: errs}
}

// Values returns the value channel.
func (m Multi[T]) Values() <-chan T { return m.values }

// Errors returns the channel that carries the terminal error, if any. Read it
// after Values is closed.
func (m Multi[T]) Errors() <-chan error { return m.errs }

// Collect drains the stream. It returns every value received together with
// the terminal error, if any. A failure of the producer arrives before any
// value, so only cancellation yields both values and an error.
func (m Multi[T]) Collect(ctx context.Context) ([]T, error) {
	var out []T
	for {
		select {
		case v, ok := <-m.values:
			if !ok {
				return out, <-m.errs
			}
			out = append(out, v)
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
}
