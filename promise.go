package swrcache

import (
	"context"
	"sync"
)

// Promise is the eventual result of one fetcher invocation. It settles exactly
// once; every waiter observes the same value and error.
type Promise[V any] struct {
	done chan struct{}
	once sync.Once
	val  V
	err  error
}

func newPromise[V any]() *Promise[V] {
	return &Promise[V]{done: make(chan struct{})}
}

// Resolved returns a promise that is already settled with v.
func Resolved[V any](v V) *Promise[V] {
	p := newPromise[V]()
	p.settle(v, nil)
	return p
}

// Rejected returns a promise that is already settled with err.
func Rejected[V any](err error) *Promise[V] {
	p := newPromise[V]()
	var zero V
	p.settle(zero, err)
	return p
}

func (p *Promise[V]) settle(v V, err error) {
	p.once.Do(func() {
		p.val, p.err = v, err
		close(p.done)
	})
}

// Done is closed once the promise settles.
func (p *Promise[V]) Done() <-chan struct{} { return p.done }

func (p *Promise[V]) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Await blocks until the promise settles or ctx is done. Giving up on ctx does
// not cancel the underlying fetch.
func (p *Promise[V]) Await(ctx context.Context) (V, error) {
	select {
	case <-p.done:
		return p.val, p.err
	default:
	}
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Result returns the settled value and error without blocking. Before the
// promise settles it returns the zero value and a nil error.
func (p *Promise[V]) Result() (V, error) {
	if !p.Settled() {
		var zero V
		return zero, nil
	}
	return p.val, p.err
}
