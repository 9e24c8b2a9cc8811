package swrcache

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/unkn0wn-root/swrcache/internal/canon"
	"github.com/unkn0wn-root/swrcache/internal/keymap"
)

// Fetcher loads the value for key. It runs on its own goroutine; ctx is
// cancelled when the cache is disposed.
type Fetcher[K any, V any] func(ctx context.Context, key K) (V, error)

// Options tune a cache. The zero value is usable.
type Options[K any, V any] struct {
	// Use lists strategies in registration order.
	Use []Strategy[K, V]
	// Stringify overrides key canonicalization. Keys that map to the same
	// string share one entry.
	Stringify func(key K) string

	Logger   Logger          // if nil, NopLogger is used
	Clock    Clock           // if nil, time.Now is used
	Registry *Registry       // optional; required when name is empty
	Context  context.Context // parent of the fetcher context; default Background
}

// Cache deduplicates fetches per key, reference counts consumers and serves
// stale values while revalidating. Policy (eviction, staleness, hydration)
// lives in strategies.
type Cache[K any, V any] struct {
	name     string
	fetch    Fetcher[K, V]
	log      Logger
	clock    Clock
	registry *Registry

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	entries  *keymap.Map[K, *entry[K, V]]
	hooks    []*Hooks[K, V]
	disposed bool
}

// New creates a cache for one named resource.
func New[K any, V any](name string, fetch Fetcher[K, V], opts Options[K, V]) (*Cache[K, V], error) {
	if fetch == nil {
		return nil, fmt.Errorf("swrcache: fetcher is required")
	}
	if name == "" {
		if opts.Registry == nil {
			return nil, fmt.Errorf("swrcache: name is required without a registry")
		}
		name = opts.Registry.NextName("cache")
	}
	if opts.Registry != nil {
		if err := opts.Registry.register(name); err != nil {
			return nil, err
		}
	}

	c := &Cache[K, V]{
		name:     name,
		fetch:    fetch,
		registry: opts.Registry,
		entries:  keymap.New[K, *entry[K, V]](opts.Stringify),
	}
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.clock = coalesce[Clock](opts.Clock, systemClock{})
	c.ctx, c.cancel = context.WithCancel(coalesce[context.Context](opts.Context, context.Background()))

	api := &API[K, V]{c: c}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range opts.Use {
		if s == nil {
			continue
		}
		if h := s(api); h != nil {
			c.hooks = append(c.hooks, h)
		}
	}
	for _, h := range c.hooks {
		if h.OnInit != nil {
			h.OnInit()
		}
	}
	c.log.Debug("cache created", Fields{"cache": name, "strategies": len(c.hooks)})
	return c, nil
}

func (c *Cache[K, V]) Name() string { return c.name }

// Ref is one counted access to an entry. Release it with Unref.
type Ref[V any] struct {
	value *Promise[V]
	once  sync.Once
	unref func()
}

// Value returns the promise handed out at access time.
func (r *Ref[V]) Value() *Promise[V] { return r.value }

// Await is shorthand for r.Value().Await(ctx).
func (r *Ref[V]) Await(ctx context.Context) (V, error) { return r.value.Await(ctx) }

// Unref releases the reference. Extra calls are no-ops.
func (r *Ref[V]) Unref() { r.once.Do(r.unref) }

// Get returns the entry for key, starting a fetch on a miss or a stale hit.
// The returned reference keeps the entry's RefCount raised until Unref.
func (c *Cache[K, V]) Get(key K) (ref *Ref[V], err error) {
	defer c.catchKey(&err)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return nil, &DisposedError{Name: c.name}
	}

	e := c.fetchOrGetLocked(key)
	e.refCount++
	for _, h := range c.hooks {
		if h.OnAccess != nil {
			h.OnAccess(key, e.info())
		}
	}
	return &Ref[V]{
		value: e.promise,
		unref: func() { c.release(key, e) },
	}, nil
}

// Prefetch warms key without taking a reference.
func (c *Cache[K, V]) Prefetch(key K) (p *Promise[V], err error) {
	defer c.catchKey(&err)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return nil, &DisposedError{Name: c.name}
	}
	return c.fetchOrGetLocked(key).promise, nil
}

// catchKey turns a key that has no canonical form into a KeyError on err.
// With a nil err the call is dropped after logging. Other panics propagate.
func (c *Cache[K, V]) catchKey(err *error) {
	r := recover()
	if r == nil {
		return
	}
	ce, ok := r.(*canon.CycleError)
	if !ok {
		panic(r)
	}
	c.log.Warn("rejected key", Fields{"cache": c.name, "err": ce})
	if err != nil {
		*err = &KeyError{Name: c.name, Err: ce}
	}
}

func (c *Cache[K, V]) release(key K, e *entry[K, V]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.refCount > 0 {
		e.refCount--
	}
	if c.disposed {
		return
	}
	// A reference to a deleted or replaced entry has nobody left to notify.
	if cur, ok := c.entries.Get(key); !ok || cur != e {
		return
	}
	for _, h := range c.hooks {
		if h.OnRelease != nil {
			h.OnRelease(key, e.info())
		}
	}
}

// fetchOrGetLocked is the access decision: fresh hit, stale hit, or miss.
func (c *Cache[K, V]) fetchOrGetLocked(key K) *entry[K, V] {
	now := c.clock.Now()

	if e, ok := c.entries.Get(key); ok {
		e.accessedAt = now
		if !e.stale || e.fetching {
			return e
		}
		failed := e.failed
		e.stale = false
		p := c.startFetchLocked(key, e)
		// A failed entry has nothing worth serving, so waiters move to the new
		// attempt. A good value keeps being served until the new one lands.
		if failed {
			e.promise = p
		}
		c.log.Debug("revalidating stale entry", Fields{"cache": c.name, "key": c.entries.KeyString(key), "failed": failed})
		c.emitFetch(key, e)
		return e
	}

	e := &entry[K, V]{key: key, createdAt: now, accessedAt: now}
	c.entries.Set(key, e)
	e.promise = c.startFetchLocked(key, e)
	c.log.Debug("cache miss", Fields{"cache": c.name, "key": c.entries.KeyString(key)})
	c.emitFetch(key, e)
	return e
}

func (c *Cache[K, V]) startFetchLocked(key K, e *entry[K, V]) *Promise[V] {
	e.fetching = true
	p := newPromise[V]()
	go c.run(key, e, p)
	return p
}

func (c *Cache[K, V]) run(key K, e *entry[K, V], p *Promise[V]) {
	v, err := c.invoke(key)

	c.mu.Lock()
	c.settleLocked(key, e, p, v, err)
	c.mu.Unlock()

	p.settle(v, err)
}

func (c *Cache[K, V]) invoke(key K) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return c.fetch(c.ctx, key)
}

func (c *Cache[K, V]) settleLocked(key K, e *entry[K, V], p *Promise[V], v V, err error) {
	if c.disposed {
		return
	}
	if cur, ok := c.entries.Get(key); !ok || cur != e {
		c.log.Debug("dropping result for removed entry", Fields{"cache": c.name, "key": c.entries.KeyString(key)})
		return
	}

	e.fetching = false
	if err != nil {
		e.failed = true
		e.err = err
		c.log.Warn("fetch failed", Fields{"cache": c.name, "key": c.entries.KeyString(key), "err": err})
		for _, h := range c.hooks {
			if h.OnError != nil {
				h.OnError(key, e.info(), err)
			}
		}
		return
	}

	e.value = v
	e.hasValue = true
	e.promise = p
	e.failed = false
	e.err = nil
	c.emitSet(key, e)
}

// Set installs a resolved value for key.
func (c *Cache[K, V]) Set(key K, v V) {
	defer c.catchKey(nil)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, v)
}

func (c *Cache[K, V]) setLocked(key K, v V) {
	if c.disposed {
		return
	}
	e, ok := c.entries.Get(key)
	if !ok {
		now := c.clock.Now()
		e = &entry[K, V]{key: key, createdAt: now, accessedAt: now}
		c.entries.Set(key, e)
	}
	e.value = v
	e.hasValue = true
	e.promise = Resolved(v)
	e.fetching = false
	e.stale = false
	e.failed = false
	e.err = nil
	c.emitSet(key, e)
}

// Stale marks key stale. Nothing is fetched until the next Get.
func (c *Cache[K, V]) Stale(key K) {
	defer c.catchKey(nil)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.staleLocked(key)
}

// StaleAll marks every entry stale.
func (c *Cache[K, V]) StaleAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.entries.Keys() {
		c.staleLocked(k)
	}
}

func (c *Cache[K, V]) staleLocked(key K) {
	if c.disposed {
		return
	}
	e, ok := c.entries.Get(key)
	if !ok {
		return
	}
	e.stale = true
	for _, h := range c.hooks {
		if h.OnStale != nil {
			h.OnStale(key, e.info())
		}
	}
}

// Refresh runs the fetcher for key right away, regardless of staleness, and
// returns its result. Waiters that pick up the entry afterwards see this
// attempt rather than any background revalidation already in flight.
func (c *Cache[K, V]) Refresh(ctx context.Context, key K) (V, error) {
	p, err := c.startRefresh(key)
	if err != nil {
		var zero V
		return zero, err
	}
	return p.Await(ctx)
}

func (c *Cache[K, V]) startRefresh(key K) (p *Promise[V], err error) {
	defer c.catchKey(&err)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return nil, &DisposedError{Name: c.name}
	}
	e, ok := c.entries.Get(key)
	if !ok {
		now := c.clock.Now()
		e = &entry[K, V]{key: key, createdAt: now, accessedAt: now}
		c.entries.Set(key, e)
	}
	e.stale = false
	p = c.startFetchLocked(key, e)
	e.promise = p
	c.emitFetch(key, e)
	return p, nil
}

// RefreshAll refreshes every existing key concurrently and waits for all of
// them. Failures are joined.
func (c *Cache[K, V]) RefreshAll(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return &DisposedError{Name: c.name}
	}
	keys := c.entries.Keys()
	c.mu.Unlock()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, k := range keys {
		wg.Add(1)
		go func(k K) {
			defer wg.Done()
			if _, err := c.Refresh(ctx, k); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(k)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Delete removes key and reports whether it existed.
func (c *Cache[K, V]) Delete(key K) bool {
	defer c.catchKey(nil)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteLocked(key)
}

func (c *Cache[K, V]) deleteLocked(key K) bool {
	if c.disposed || !c.entries.Delete(key) {
		return false
	}
	for _, h := range c.hooks {
		if h.OnDelete != nil {
			h.OnDelete(key)
		}
	}
	return true
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *Cache[K, V]) clearLocked() {
	if c.disposed {
		return
	}
	c.entries.Clear()
	for _, h := range c.hooks {
		if h.OnClear != nil {
			h.OnClear()
		}
	}
}

// Has reports whether key has an entry. It never creates one.
func (c *Cache[K, V]) Has(key K) bool {
	defer c.catchKey(nil)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Has(key)
}

// Peek returns the last resolved value for key without creating an entry or
// taking a reference.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	defer c.catchKey(nil)
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries.Get(key); ok && e.hasValue {
		return e.value, true
	}
	var zero V
	return zero, false
}

func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Extract snapshots every resolved value by canonical key. Pending entries
// and entries that never succeeded are left out.
func (c *Cache[K, V]) Extract() map[string]V {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.extractLocked()
}

func (c *Cache[K, V]) extractLocked() map[string]V {
	out := make(map[string]V, c.entries.Len())
	c.entries.RangeString(func(s string, _ K, e *entry[K, V]) bool {
		if e.hasValue {
			out[s] = e.value
		}
		return true
	})
	return out
}

// Dispose notifies strategies, drops every entry and makes further access
// fail with a DisposedError. Safe to call more than once.
func (c *Cache[K, V]) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	for _, h := range c.hooks {
		if h.OnDispose != nil {
			h.OnDispose()
		}
	}
	n := c.entries.Len()
	c.entries.Clear()
	c.disposed = true
	c.mu.Unlock()

	c.cancel()
	if c.registry != nil {
		c.registry.unregister(c.name)
	}
	c.log.Info("cache disposed", Fields{"cache": c.name, "dropped": n})
}

func (c *Cache[K, V]) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

func (c *Cache[K, V]) emitFetch(key K, e *entry[K, V]) {
	for _, h := range c.hooks {
		if h.OnFetch != nil {
			h.OnFetch(key, e.info())
		}
	}
}

func (c *Cache[K, V]) emitSet(key K, e *entry[K, V]) {
	for _, h := range c.hooks {
		if h.OnSet != nil {
			h.OnSet(key, e.info())
		}
	}
}
