package dispatch

import (
	"context"
	"sync"
)

// Future is the eventual value of an asynchronous operation.
type Future[T any] interface {
	// Get blocks until the value is available.
	Get() (T, error)
	// Done is closed once the value is available.
	Done() <-chan struct{}
}

// CompletableFuture is a Future whose value is supplied by its producer.
// The first call to Complete or Error wins.
type CompletableFuture[T any] interface {
	Future[T]
	Complete(T)
	Error(error)
}

// NewFuture creates an unresolved CompletableFuture.
func NewFuture[T any]() CompletableFuture[T] {
	return &future[T]{done: make(chan struct{})}
}

type future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func (f *future[T]) Get() (T, error) {
	<-f.done
	return f.value, f.err
}

func (f *future[T]) Done() <-chan struct{} {
	return f.done
}

func (f *future[T]) Complete(value T) {
	f.once.Do(func() {
		f.value = value
		close(f.done)
	})
}

func (f *future[T]) Error(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Await waits for fut or for ctx to end, whichever comes first.
func Await[T any](ctx context.Context, fut Future[T]) (T, error) {
	select {
	case <-fut.Done():
		return fut.Get()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
