package observe

import (
	"sync"
	"sync/atomic"
)

// Async moves observation off the cache lock onto worker goroutines. Events
// are dropped, never blocked on, when the queue is full.
type Async struct {
	inner Observer
	q     chan Event
	wg    sync.WaitGroup

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ Observer = (*Async)(nil)

func NewAsync(inner Observer, workers, qlen int) *Async {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}
	a := &Async{inner: inner, q: make(chan Event, qlen)}
	a.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer a.wg.Done()
			for e := range a.q {
				a.inner.Observe(e)
			}
		}()
	}
	return a
}

func (a *Async) Observe(e Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return
	}
	select {
	case a.q <- e:
	default:
		a.dropped.Add(1)
	}
}

// Dropped counts events lost to a full queue or a closed Async.
func (a *Async) Dropped() uint64 { return a.dropped.Load() }

// Close drains queued events and stops the workers.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.q)
	a.mu.Unlock()
	a.wg.Wait()
}
