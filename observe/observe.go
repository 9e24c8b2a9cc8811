// Package observe turns cache lifecycle hooks into events for metrics and
// logging. Register it like any other strategy:
//
//	counters := new(observe.Counters)
//	events := observe.NewAsync(observe.Multi{counters, observe.NewSlog(slog.Default(), observe.SlogOptions{})}, 1, 1024)
//	defer events.Close()
//
//	users, _ := swrcache.New("users", fetchUser, swrcache.Options[string, User]{
//	    Use: []swrcache.Strategy[string, User]{
//	        strategy.LRU[string, User](10_000),
//	        observe.Strategy[string, User](events),
//	    },
//	})
//
// Observers are called while the cache lock is held. Anything slower than an
// atomic add belongs behind Async.
package observe

import (
	"time"

	"github.com/unkn0wn-root/swrcache"
)

type Kind uint8

const (
	KindInit Kind = iota
	KindDispose
	KindFetch
	KindAccess
	KindRelease
	KindStale
	KindSet
	KindError
	KindDelete
	KindClear

	numKinds
)

var kindNames = [numKinds]string{
	"init", "dispose", "fetch", "access", "release", "stale", "set", "error", "delete", "clear",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return "unknown"
}

// Event describes one lifecycle hook invocation. Key is the canonical key
// string and is empty for cache-wide events.
type Event struct {
	Kind     Kind
	Cache    string
	Key      string
	RefCount int
	Err      error
	At       time.Time
}

type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Multi fans every event out to each observer in order.
type Multi []Observer

func (m Multi) Observe(e Event) {
	for _, o := range m {
		o.Observe(e)
	}
}

// Strategy reports every lifecycle hook of a cache to o.
func Strategy[K any, V any](o Observer) swrcache.Strategy[K, V] {
	return func(api *swrcache.API[K, V]) *swrcache.Hooks[K, V] {
		emit := func(kind Kind, key string, refs int, err error) {
			o.Observe(Event{Kind: kind, Cache: api.Name(), Key: key, RefCount: refs, Err: err, At: api.Now()})
		}
		entry := func(kind Kind) func(K, swrcache.EntryInfo[K, V]) {
			return func(key K, e swrcache.EntryInfo[K, V]) {
				emit(kind, api.KeyString(key), e.RefCount, nil)
			}
		}
		return &swrcache.Hooks[K, V]{
			OnInit:    func() { emit(KindInit, "", 0, nil) },
			OnDispose: func() { emit(KindDispose, "", 0, nil) },
			OnFetch:   entry(KindFetch),
			OnAccess:  entry(KindAccess),
			OnRelease: entry(KindRelease),
			OnStale:   entry(KindStale),
			OnSet:     entry(KindSet),
			OnError: func(key K, e swrcache.EntryInfo[K, V], err error) {
				emit(KindError, api.KeyString(key), e.RefCount, err)
			},
			OnDelete: func(key K) { emit(KindDelete, api.KeyString(key), 0, nil) },
			OnClear:  func() { emit(KindClear, "", 0, nil) },
		}
	}
}
