package swrcache

import "time"

// Strategy is a pluggable policy. It is called once while the cache is being
// constructed and may return nil when it only needs the API.
type Strategy[K any, V any] func(api *API[K, V]) *Hooks[K, V]

// Hooks are optional lifecycle callbacks. For each lifecycle point the cache
// runs the present callbacks of every strategy in registration order.
//
// Callbacks run synchronously while the cache lock is held. They must only
// touch the cache through the API handed to their strategy and must not block.
// A callback may observe changes made by an earlier strategy's callback for the
// same event (including deletion of the entry it is told about).
type Hooks[K any, V any] struct {
	OnInit    func()
	OnDispose func()
	OnFetch   func(key K, e EntryInfo[K, V])
	OnAccess  func(key K, e EntryInfo[K, V])
	OnRelease func(key K, e EntryInfo[K, V])
	OnStale   func(key K, e EntryInfo[K, V])
	OnSet     func(key K, e EntryInfo[K, V])
	OnError   func(key K, e EntryInfo[K, V], err error)
	OnDelete  func(key K)
	OnClear   func()
}

// API is the narrow view of a cache given to strategies. It cannot start
// fetches; only the cache decides when the fetcher runs.
//
// Methods assume the cache lock is held, which is always the case inside a
// hook callback. Calling them from any other goroutine is a data race.
type API[K any, V any] struct {
	c *Cache[K, V]
}

func (a *API[K, V]) Name() string { return a.c.name }

// Now reads the cache's clock so strategies compare against the same time
// source used for CreatedAt and AccessedAt.
func (a *API[K, V]) Now() time.Time { return a.c.clock.Now() }

func (a *API[K, V]) Logger() Logger { return a.c.log }

// KeyString returns the canonical string the cache uses for key.
func (a *API[K, V]) KeyString(key K) string { return a.c.entries.KeyString(key) }

func (a *API[K, V]) Get(key K) (EntryInfo[K, V], bool) {
	e, ok := a.c.entries.Get(key)
	if !ok {
		return EntryInfo[K, V]{}, false
	}
	return e.info(), true
}

func (a *API[K, V]) Has(key K) bool { return a.c.entries.Has(key) }

// Set installs a resolved value, creating the entry if needed.
func (a *API[K, V]) Set(key K, v V) { a.c.setLocked(key, v) }

func (a *API[K, V]) Delete(key K) bool { return a.c.deleteLocked(key) }

func (a *API[K, V]) Clear() { a.c.clearLocked() }

// Stale marks key stale; the next access revalidates it.
func (a *API[K, V]) Stale(key K) { a.c.staleLocked(key) }

func (a *API[K, V]) Size() int { return a.c.entries.Len() }

// Iterate visits a snapshot of all entries in insertion order until fn returns
// false. fn may delete or modify entries.
func (a *API[K, V]) Iterate(fn func(key K, e EntryInfo[K, V]) bool) {
	infos := make([]EntryInfo[K, V], 0, a.c.entries.Len())
	a.c.entries.Range(func(_ K, e *entry[K, V]) bool {
		infos = append(infos, e.info())
		return true
	})
	for _, info := range infos {
		if !fn(info.Key, info) {
			return
		}
	}
}

func (a *API[K, V]) Extract() map[string]V { return a.c.extractLocked() }
