// Package future provides a single-shot result container that is completed
// from one goroutine and awaited from another.
package future

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned by AwaitTimeout when the future did not complete in time.
var ErrTimeout = errors.New("future: timed out")

type result[T any] struct {
	v   T
	err error
}

// Future completes exactly once, either with a value or an error. Later
// completions are ignored.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	res  result[T]
}

// New returns a pending Future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// FromValue returns an already completed Future.
func FromValue[T any](v T) *Future[T] {
	f := New[T]()
	f.Complete(v)
	return f
}

// FromError returns an already failed Future.
func FromError[T any](err error) *Future[T] {
	f := New[T]()
	f.Fail(err)
	return f
}

// Complete resolves the future with v. It reports whether this call won.
func (f *Future[T]) Complete(v T) bool { return f.complete(v, nil) }

// Fail resolves the future with err. It reports whether this call won.
func (f *Future[T]) Fail(err error) bool {
	var zero T
	return f.complete(zero, err)
}

func (f *Future[T]) complete(v T, err error) (won bool) {
	f.once.Do(func() {
		f.res = result[T]{v: v, err: err}
		close(f.done)
		won = true
	})
	return
}

// Done is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// IsDone reports whether the future is resolved without blocking.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the future resolves or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.res.v, f.res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AwaitTimeout waits at most d and returns ErrTimeout when d elapses first.
func (f *Future[T]) AwaitTimeout(d time.Duration) (T, error) {
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-f.done:
		return f.res.v, f.res.err
	case <-tmr.C:
		var zero T
		return zero, ErrTimeout
	}
}
