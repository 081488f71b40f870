// Package oneshot turns callback-style completion into a value that settles once.
package oneshot

import (
	"context"
	"errors"
	"sync"
)

var ErrCanceled = errors.New("oneshot: canceled")

// Outcome settles at most once. The release hook runs on the first
// settlement, whatever its kind, and never again.
type Outcome[T any] struct {
	once    sync.Once
	done    chan struct{}
	release func()

	val T
	err error
}

func New[T any](release func()) *Outcome[T] {
	return &Outcome[T]{
		done:    make(chan struct{}),
		release: release,
	}
}

// SetRelease replaces the hook. It is meant for callers that can only
// register listeners after the outcome exists.
func (o *Outcome[T]) SetRelease(release func()) {
	o.release = release
}

func (o *Outcome[T]) settle(v T, err error) bool {
	settled := false
	o.once.Do(func() {
		o.val, o.err = v, err
		settled = true
		close(o.done)
		if o.release != nil {
			o.release()
		}
	})
	return settled
}

// Resolve reports whether this call settled the outcome.
func (o *Outcome[T]) Resolve(v T) bool {
	return o.settle(v, nil)
}

// Reject reports whether this call settled the outcome.
func (o *Outcome[T]) Reject(err error) bool {
	var zero T
	return o.settle(zero, err)
}

func (o *Outcome[T]) Cancel() {
	o.Reject(ErrCanceled)
}

func (o *Outcome[T]) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until settled. If ctx ends first the outcome is rejected
// with ctx.Err(), so a late settlement is dropped.
func (o *Outcome[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-o.done:
	case <-ctx.Done():
		o.Reject(ctx.Err())
		<-o.done
	}
	return o.val, o.err
}
