// Package future provides a one-shot, channel backed result holder used at
// asynchronous boundaries.
package future

import (
	"context"
	"sync"
)

type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// New returns an unresolved future and the function resolving it. Only the
// first call to resolve has an effect.
func New[T any]() (*Future[T], func(T, error)) {
	f := &Future[T]{done: make(chan struct{})}
	once := sync.Once{}
	return f, func(val T, err error) {
		once.Do(func() {
			f.val, f.err = val, err
			close(f.done)
		})
	}
}

func Failed[T any](err error) *Future[T] {
	var zero T
	f, resolve := New[T]()
	resolve(zero, err)
	return f
}

// Done is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future resolves or ctx is done. Cancelling ctx only
// stops waiting, the underlying work is not cancelled.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then chains fn after f. A failed f skips fn and propagates the error.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	next, resolve := New[U]()
	go func() {
		<-f.done
		if f.err != nil {
			var zero U
			resolve(zero, f.err)
			return
		}
		resolve(fn(f.val))
	}()
	return next
}
