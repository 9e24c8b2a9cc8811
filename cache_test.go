package swrcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type user struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestCache[K any, V any](t *testing.T, name string, fetch Fetcher[K, V], optsOpt func(*Options[K, V])) *Cache[K, V] {
	t.Helper()
	var opts Options[K, V]
	if optsOpt != nil {
		optsOpt(&opts)
	}
	c, err := New(name, fetch, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Dispose)
	return c
}

func mustGet[K any, V any](t *testing.T, c *Cache[K, V], key K) *Ref[V] {
	t.Helper()
	r, err := c.Get(key)
	if err != nil {
		t.Fatalf("Get(%v): %v", key, err)
	}
	return r
}

func await[V any](t *testing.T, p *Promise[V]) (V, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := p.Await(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("promise never settled")
	}
	return v, err
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func refCount[K any, V any](c *Cache[K, V], key K) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries.Get(key); ok {
		return e.refCount
	}
	return -1
}

// ==============================
// Dedup / isolation
// ==============================

func TestConcurrentGetsShareOneFetch(t *testing.T) {
	var calls atomic.Int32
	gate := make(chan struct{})
	c := newTestCache(t, "dedup", func(_ context.Context, key string) (string, error) {
		calls.Add(1)
		<-gate
		return "v:" + key, nil
	}, nil)

	const n = 32
	refs := make([]*Ref[string], n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := c.Get("k")
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			refs[i] = r
		}(i)
	}
	wg.Wait()
	close(gate)

	for i, r := range refs {
		if r.Value() != refs[0].Value() {
			t.Fatalf("ref %d got a different promise", i)
		}
		if v, err := await(t, r.Value()); err != nil || v != "v:k" {
			t.Fatalf("ref %d: v=%q err=%v", i, v, err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("fetcher calls=%d want 1", got)
	}
	if rc := refCount(c, "k"); rc != n {
		t.Fatalf("refCount=%d want %d", rc, n)
	}
}

func TestDistinctKeysFetchOnceEach(t *testing.T) {
	var mu sync.Mutex
	calls := map[int]int{}
	c := newTestCache(t, "isolation", func(_ context.Context, key int) (int, error) {
		mu.Lock()
		calls[key]++
		mu.Unlock()
		return key * 10, nil
	}, nil)

	for round := 0; round < 3; round++ {
		for k := 1; k <= 5; k++ {
			r := mustGet(t, c, k)
			if v, err := await(t, r.Value()); err != nil || v != k*10 {
				t.Fatalf("key %d: v=%d err=%v", k, v, err)
			}
			r.Unref()
		}
	}
	mu.Lock()
	defer mu.Unlock()
	for k := 1; k <= 5; k++ {
		if calls[k] != 1 {
			t.Fatalf("key %d fetched %d times", k, calls[k])
		}
	}
}

func TestStructurallyEqualKeysShareEntry(t *testing.T) {
	type query struct {
		Page   int               `json:"page"`
		Filter map[string]string `json:"filter"`
	}
	var calls atomic.Int32
	c := newTestCache(t, "structural", func(_ context.Context, q *query) (int, error) {
		calls.Add(1)
		return q.Page, nil
	}, nil)

	a := &query{Page: 2, Filter: map[string]string{"a": "1", "b": "2"}}
	b := &query{Page: 2, Filter: map[string]string{"b": "2", "a": "1"}}

	ra := mustGet(t, c, a)
	rb := mustGet(t, c, b)
	if ra.Value() != rb.Value() {
		t.Fatalf("equal keys should share a promise")
	}
	if _, err := await(t, rb.Value()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls=%d want 1", calls.Load())
	}
	if c.Len() != 1 {
		t.Fatalf("len=%d want 1", c.Len())
	}
}

func TestCustomStringifyCollapsesFields(t *testing.T) {
	type req struct {
		ID string
		At time.Time
	}
	var calls atomic.Int32
	c := newTestCache(t, "custom-key", func(_ context.Context, r req) (string, error) {
		calls.Add(1)
		return r.ID, nil
	}, func(o *Options[req, string]) {
		o.Stringify = func(r req) string { return r.ID }
	})

	r1 := mustGet(t, c, req{ID: "a", At: time.Unix(1, 0)})
	r2 := mustGet(t, c, req{ID: "a", At: time.Unix(2, 0)})
	if r1.Value() != r2.Value() {
		t.Fatalf("collapsed keys should share an entry")
	}
	await(t, r2.Value())
	if calls.Load() != 1 {
		t.Fatalf("calls=%d want 1", calls.Load())
	}
	if snap := c.Extract(); snap["a"] != "a" || len(snap) != 1 {
		t.Fatalf("extract=%v", snap)
	}
}

// ==============================
// Stale-while-revalidate
// ==============================

func TestStaleServesPreviousValueWhileRevalidating(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{}, 4)
	c := newTestCache(t, "swr", func(_ context.Context, key string) (string, error) {
		n := calls.Add(1)
		<-release
		return fmt.Sprintf("%s-v%d", key, n), nil
	}, nil)

	release <- struct{}{}
	r1 := mustGet(t, c, "k")
	if v, _ := await(t, r1.Value()); v != "k-v1" {
		t.Fatalf("first value=%q", v)
	}
	first := r1.Value()

	c.Stale("k")
	r2 := mustGet(t, c, "k")
	if r2.Value() != first {
		t.Fatalf("stale hit must keep serving the previous promise")
	}
	if v, _ := await(t, r2.Value()); v != "k-v1" {
		t.Fatalf("stale hit value=%q want k-v1", v)
	}
	waitFor(t, "background fetch to start", func() bool { return calls.Load() == 2 })

	// Still revalidating: no second fetch, same old promise.
	r3 := mustGet(t, c, "k")
	if r3.Value() != first {
		t.Fatalf("access during revalidation must not switch promises")
	}

	release <- struct{}{}
	waitFor(t, "revalidated value", func() bool {
		v, _ := c.Peek("k")
		return v == "k-v2"
	})

	r4 := mustGet(t, c, "k")
	if r4.Value() == first {
		t.Fatalf("access after revalidation should see the new promise")
	}
	if v, _ := await(t, r4.Value()); v != "k-v2" {
		t.Fatalf("new value=%q", v)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls=%d want 2", calls.Load())
	}
}

func TestStaleAllRefetchesEachKeyOnce(t *testing.T) {
	var mu sync.Mutex
	calls := map[string]int{}
	c := newTestCache(t, "stale-all", func(_ context.Context, key string) (string, error) {
		mu.Lock()
		calls[key]++
		mu.Unlock()
		return key, nil
	}, nil)

	keys := []string{"a", "b", "c"}
	for _, k := range keys {
		r := mustGet(t, c, k)
		await(t, r.Value())
		r.Unref()
	}

	c.StaleAll()
	for _, k := range keys {
		mustGet(t, c, k).Unref()
		mustGet(t, c, k).Unref() // second access while revalidating: no new fetch
	}

	waitFor(t, "revalidation", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls["a"] == 2 && calls["b"] == 2 && calls["c"] == 2
	})
	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	for _, k := range keys {
		if calls[k] != 2 {
			t.Fatalf("key %s fetched %d times, want 2", k, calls[k])
		}
	}
}

// ==============================
// Errors
// ==============================

func TestFetchErrorIsIsolatedPerKey(t *testing.T) {
	c := newTestCache(t, "errors", func(_ context.Context, key string) (string, error) {
		if key == "bad" {
			return "", errors.New("Factory error")
		}
		return "ok:" + key, nil
	}, nil)

	bad := mustGet(t, c, "bad")
	if _, err := await(t, bad.Value()); err == nil || err.Error() != "Factory error" {
		t.Fatalf("err=%v want Factory error", err)
	}
	good := mustGet(t, c, "good")
	if v, err := await(t, good.Value()); err != nil || v != "ok:good" {
		t.Fatalf("good: v=%q err=%v", v, err)
	}

	if _, ok := c.Peek("bad"); ok {
		t.Fatalf("failed entry must not expose a value")
	}
	if !c.Has("bad") {
		t.Fatalf("failed entry should stay until a strategy removes it")
	}
	if snap := c.Extract(); len(snap) != 1 || snap["good"] != "ok:good" {
		t.Fatalf("extract=%v", snap)
	}
}

func TestStaleFailedEntryReplacesPromise(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	c := newTestCache(t, "recover", func(_ context.Context, key string) (string, error) {
		if fail.Load() {
			return "", errors.New("boom")
		}
		return "fixed", nil
	}, nil)

	r1 := mustGet(t, c, "k")
	if _, err := await(t, r1.Value()); err == nil {
		t.Fatalf("expected failure")
	}

	fail.Store(false)
	c.Stale("k")
	r2 := mustGet(t, c, "k")
	if r2.Value() == r1.Value() {
		t.Fatalf("revalidating a failed entry must hand out the new attempt")
	}
	if v, err := await(t, r2.Value()); err != nil || v != "fixed" {
		t.Fatalf("v=%q err=%v", v, err)
	}
}

func TestFailedRevalidationKeepsLastGoodValue(t *testing.T) {
	var fail atomic.Bool
	c := newTestCache(t, "keep-good", func(_ context.Context, key string) (string, error) {
		if fail.Load() {
			return "", errors.New("down")
		}
		return "good", nil
	}, nil)

	r1 := mustGet(t, c, "k")
	await(t, r1.Value())

	fail.Store(true)
	c.Stale("k")
	mustGet(t, c, "k")
	waitFor(t, "failed revalidation", func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		e, _ := c.entries.Get("k")
		return e.failed && !e.fetching
	})

	if v, ok := c.Peek("k"); !ok || v != "good" {
		t.Fatalf("peek=%q,%v want last good value", v, ok)
	}
	r3 := mustGet(t, c, "k")
	if v, err := await(t, r3.Value()); err != nil || v != "good" {
		t.Fatalf("access after failed revalidation: v=%q err=%v", v, err)
	}
}

func TestPanickingFetcherRejects(t *testing.T) {
	c := newTestCache(t, "panic", func(_ context.Context, key string) (string, error) {
		panic("kaboom")
	}, nil)

	r := mustGet(t, c, "k")
	_, err := await(t, r.Value())
	var pe *PanicError
	if !errors.As(err, &pe) || pe.Value != "kaboom" {
		t.Fatalf("err=%v want PanicError(kaboom)", err)
	}
}

// ==============================
// Refresh / prefetch / peek
// ==============================

func TestRefreshReturnsFreshValue(t *testing.T) {
	var n atomic.Int32
	c := newTestCache(t, "refresh", func(_ context.Context, key string) (int, error) {
		return int(n.Add(1)), nil
	}, nil)

	r := mustGet(t, c, "k")
	await(t, r.Value())

	v, err := c.Refresh(context.Background(), "k")
	if err != nil || v != 2 {
		t.Fatalf("refresh v=%d err=%v", v, err)
	}
	if got, _ := c.Peek("k"); got != 2 {
		t.Fatalf("peek=%d want 2", got)
	}
	r2 := mustGet(t, c, "k")
	if got, _ := await(t, r2.Value()); got != 2 {
		t.Fatalf("access after refresh=%d", got)
	}

	// refresh on a missing key creates it
	if v, err := c.Refresh(context.Background(), "new"); err != nil || v != 3 {
		t.Fatalf("refresh new v=%d err=%v", v, err)
	}
}

func TestRefreshSurfacesError(t *testing.T) {
	var fail atomic.Bool
	c := newTestCache(t, "refresh-err", func(_ context.Context, key string) (string, error) {
		if fail.Load() {
			return "", errors.New("nope")
		}
		return "v", nil
	}, nil)
	await(t, mustGet(t, c, "k").Value())

	fail.Store(true)
	if _, err := c.Refresh(context.Background(), "k"); err == nil || err.Error() != "nope" {
		t.Fatalf("err=%v", err)
	}
	if v, _ := c.Peek("k"); v != "v" {
		t.Fatalf("failed refresh overwrote value: %q", v)
	}
}

func TestRefreshAllJoinsErrors(t *testing.T) {
	var fail atomic.Bool
	var calls atomic.Int32
	c := newTestCache(t, "refresh-all", func(_ context.Context, key string) (string, error) {
		calls.Add(1)
		if fail.Load() && key == "b" {
			return "", errors.New("b failed")
		}
		return key, nil
	}, nil)
	for _, k := range []string{"a", "b", "c"} {
		await(t, mustGet(t, c, k).Value())
	}

	if err := c.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if calls.Load() != 6 {
		t.Fatalf("calls=%d want 6", calls.Load())
	}

	fail.Store(true)
	err := c.RefreshAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "b failed") {
		t.Fatalf("err=%v", err)
	}
}

func TestRefreshOverridesInFlightRevalidation(t *testing.T) {
	var n atomic.Int32
	gate := make(chan struct{})
	c := newTestCache(t, "refresh-race", func(_ context.Context, key string) (int, error) {
		i := n.Add(1)
		if i == 2 {
			<-gate
		}
		return int(i), nil
	}, nil)

	if v, _ := await(t, mustGet(t, c, "k").Value()); v != 1 {
		t.Fatalf("first value=%d", v)
	}
	c.Stale("k")
	mustGet(t, c, "k").Unref()
	waitFor(t, "background revalidation", func() bool { return n.Load() == 2 })

	v, err := c.Refresh(context.Background(), "k")
	if err != nil || v != 3 {
		t.Fatalf("refresh v=%d err=%v", v, err)
	}
	if got, _ := await(t, mustGet(t, c, "k").Value()); got != 3 {
		t.Fatalf("access after refresh=%d want 3", got)
	}

	// the blocked revalidation settles last and its value wins
	close(gate)
	waitFor(t, "late revalidation", func() bool {
		got, _ := c.Peek("k")
		return got == 2
	})
}

func TestPeekAndHasDoNotCreate(t *testing.T) {
	var calls atomic.Int32
	c := newTestCache(t, "peek", func(_ context.Context, key string) (string, error) {
		calls.Add(1)
		return key, nil
	}, nil)

	if c.Has("x") {
		t.Fatalf("has on empty cache")
	}
	if _, ok := c.Peek("x"); ok {
		t.Fatalf("peek on empty cache")
	}
	if c.Len() != 0 || calls.Load() != 0 {
		t.Fatalf("peek/has created state")
	}
}

type node struct {
	ID   int   `json:"id"`
	Next *node `json:"next"`
}

func TestCyclicKeyIsRejected(t *testing.T) {
	var calls atomic.Int32
	c := newTestCache(t, "cyclic", func(_ context.Context, key any) (string, error) {
		calls.Add(1)
		return "v", nil
	}, nil)

	n := &node{ID: 1}
	n.Next = n

	_, err := c.Get(n)
	if !errors.Is(err, ErrCyclicKey) {
		t.Fatalf("Get err=%v want ErrCyclicKey", err)
	}
	var ke *KeyError
	if !errors.As(err, &ke) || ke.Name != "cyclic" {
		t.Fatalf("err=%#v want *KeyError for cyclic", err)
	}
	if _, err := c.Prefetch(n); !errors.Is(err, ErrCyclicKey) {
		t.Fatalf("Prefetch err=%v", err)
	}
	if _, err := c.Refresh(context.Background(), n); !errors.Is(err, ErrCyclicKey) {
		t.Fatalf("Refresh err=%v", err)
	}
	c.Set(n, "x")
	c.Stale(n)
	if c.Has(n) {
		t.Fatalf("Has(cyclic)=true")
	}
	if _, ok := c.Peek(n); ok {
		t.Fatalf("Peek(cyclic) found a value")
	}
	if c.Delete(n) {
		t.Fatalf("Delete(cyclic)=true")
	}

	// the lock was released on every path
	if v, err := await(t, mustGet(t, c, "ok").Value()); err != nil || v != "v" {
		t.Fatalf("Get after rejected key: v=%q err=%v", v, err)
	}
	if c.Len() != 1 || calls.Load() != 1 {
		t.Fatalf("len=%d calls=%d want 1 and 1", c.Len(), calls.Load())
	}
}

func TestPrefetchTakesNoReference(t *testing.T) {
	c := newTestCache(t, "prefetch", func(_ context.Context, key string) (string, error) {
		return key, nil
	}, nil)

	p, err := c.Prefetch("k")
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := await(t, p); v != "k" {
		t.Fatalf("v=%q", v)
	}
	if rc := refCount(c, "k"); rc != 0 {
		t.Fatalf("refCount=%d want 0", rc)
	}
}

func TestUnrefIsIdempotent(t *testing.T) {
	c := newTestCache(t, "unref", func(_ context.Context, key string) (string, error) {
		return key, nil
	}, nil)

	r1 := mustGet(t, c, "k")
	r2 := mustGet(t, c, "k")
	if rc := refCount(c, "k"); rc != 2 {
		t.Fatalf("refCount=%d want 2", rc)
	}
	r1.Unref()
	r1.Unref()
	r1.Unref()
	if rc := refCount(c, "k"); rc != 1 {
		t.Fatalf("refCount=%d want 1 after repeated unref", rc)
	}
	r2.Unref()
	if rc := refCount(c, "k"); rc != 0 {
		t.Fatalf("refCount=%d want 0", rc)
	}
}

func TestSetInstallsResolvedValue(t *testing.T) {
	var calls atomic.Int32
	c := newTestCache(t, "set", func(_ context.Context, key string) (user, error) {
		calls.Add(1)
		return user{ID: key}, nil
	}, nil)

	c.Set("1", user{ID: "1", Name: "Ada"})
	r := mustGet(t, c, "1")
	if v, err := await(t, r.Value()); err != nil || v.Name != "Ada" {
		t.Fatalf("v=%+v err=%v", v, err)
	}
	if calls.Load() != 0 {
		t.Fatalf("set value should not fetch")
	}
}

// ==============================
// Race-safe settle
// ==============================

func TestSettleAfterDeleteIsDropped(t *testing.T) {
	gate := make(chan struct{})
	c := newTestCache(t, "drop", func(_ context.Context, key string) (string, error) {
		<-gate
		return key, nil
	}, nil)

	r := mustGet(t, c, "k")
	if !c.Delete("k") {
		t.Fatalf("delete should report existing entry")
	}
	close(gate)

	if v, err := await(t, r.Value()); err != nil || v != "k" {
		t.Fatalf("consumer should still get its result: v=%q err=%v", v, err)
	}
	if c.Has("k") {
		t.Fatalf("settled fetch resurrected a deleted entry")
	}
}

func TestDisposeCancelsFetcherContext(t *testing.T) {
	started := make(chan struct{})
	c := newTestCache(t, "cancel", func(ctx context.Context, key string) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}, nil)

	r := mustGet(t, c, "k")
	<-started
	c.Dispose()
	if _, err := await(t, r.Value()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}

// ==============================
// Dispose
// ==============================

func TestDisposeIsTerminal(t *testing.T) {
	var disposals atomic.Int32
	spy := func(api *API[string, string]) *Hooks[string, string] {
		return &Hooks[string, string]{OnDispose: func() { disposals.Add(1) }}
	}
	c := newTestCache(t, "users", func(_ context.Context, key string) (string, error) {
		return key, nil
	}, func(o *Options[string, string]) { o.Use = []Strategy[string, string]{spy} })

	await(t, mustGet(t, c, "k").Value())
	c.Dispose()
	c.Dispose()

	if disposals.Load() != 1 {
		t.Fatalf("OnDispose fired %d times", disposals.Load())
	}
	_, err := c.Get("k")
	if err == nil {
		t.Fatalf("Get after dispose should fail")
	}
	if !strings.Contains(err.Error(), "users") || !strings.Contains(err.Error(), "disposed") {
		t.Fatalf("error %q should name the cache and say disposed", err)
	}
	if !errors.Is(err, ErrDisposed) {
		t.Fatalf("errors.Is(err, ErrDisposed) = false")
	}
	if _, err := c.Prefetch("k"); !errors.Is(err, ErrDisposed) {
		t.Fatalf("prefetch err=%v", err)
	}
	if _, err := c.Refresh(context.Background(), "k"); !errors.Is(err, ErrDisposed) {
		t.Fatalf("refresh err=%v", err)
	}
	if c.Has("k") || c.Len() != 0 || !c.Disposed() {
		t.Fatalf("disposed cache still holds entries")
	}
	c.Set("k", "v")
	if c.Len() != 0 {
		t.Fatalf("set after dispose created an entry")
	}
}

// ==============================
// Hook protocol
// ==============================

func recorder(name string, mu *sync.Mutex, events *[]string) Strategy[string, string] {
	return func(api *API[string, string]) *Hooks[string, string] {
		rec := func(ev string) {
			mu.Lock()
			*events = append(*events, name+":"+ev)
			mu.Unlock()
		}
		return &Hooks[string, string]{
			OnInit:    func() { rec("init") },
			OnFetch:   func(k string, _ EntryInfo[string, string]) { rec("fetch " + k) },
			OnAccess:  func(k string, e EntryInfo[string, string]) { rec(fmt.Sprintf("access %s rc=%d", k, e.RefCount)) },
			OnRelease: func(k string, e EntryInfo[string, string]) { rec(fmt.Sprintf("release %s rc=%d", k, e.RefCount)) },
			OnSet:     func(k string, _ EntryInfo[string, string]) { rec("set " + k) },
			OnStale:   func(k string, _ EntryInfo[string, string]) { rec("stale " + k) },
			OnError:   func(k string, _ EntryInfo[string, string], err error) { rec("error " + k) },
			OnDelete:  func(k string) { rec("delete " + k) },
			OnClear:   func() { rec("clear") },
			OnDispose: func() { rec("dispose") },
		}
	}
}

func TestHooksRunInRegistrationOrder(t *testing.T) {
	var mu sync.Mutex
	var events []string
	c := newTestCache(t, "hooks", func(_ context.Context, key string) (string, error) {
		if key == "bad" {
			return "", errors.New("bad")
		}
		return key, nil
	}, func(o *Options[string, string]) {
		o.Use = []Strategy[string, string]{recorder("a", &mu, &events), nil, recorder("b", &mu, &events)}
	})

	r := mustGet(t, c, "k")
	await(t, r.Value())
	r.Unref()
	await(t, mustGet(t, c, "bad").Value())
	c.Stale("k")
	c.Delete("k")
	c.Clear()
	c.Dispose()

	want := []string{
		"a:init", "b:init",
		"a:fetch k", "b:fetch k",
		"a:access k rc=1", "b:access k rc=1",
		"a:set k", "b:set k",
		"a:release k rc=0", "b:release k rc=0",
		"a:fetch bad", "b:fetch bad",
		"a:access bad rc=1", "b:access bad rc=1",
		"a:error bad", "b:error bad",
		"a:stale k", "b:stale k",
		"a:delete k", "b:delete k",
		"a:clear", "b:clear",
		"a:dispose", "b:dispose",
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(events, "\n") != strings.Join(want, "\n") {
		t.Fatalf("events:\n%s\nwant:\n%s", strings.Join(events, "\n"), strings.Join(want, "\n"))
	}
}

func TestStrategyAPIMutatesThroughEngine(t *testing.T) {
	// Drops every value as soon as it lands.
	dropper := func(api *API[string, string]) *Hooks[string, string] {
		return &Hooks[string, string]{
			OnSet: func(k string, e EntryInfo[string, string]) {
				if e.Value == "drop" {
					api.Delete(k)
				}
			},
		}
	}
	c := newTestCache(t, "api", func(_ context.Context, key string) (string, error) {
		return key, nil
	}, func(o *Options[string, string]) { o.Use = []Strategy[string, string]{dropper} })

	await(t, mustGet(t, c, "drop").Value())
	await(t, mustGet(t, c, "keep").Value())
	if c.Has("drop") || !c.Has("keep") {
		t.Fatalf("has(drop)=%v has(keep)=%v", c.Has("drop"), c.Has("keep"))
	}
}

// ==============================
// Construction
// ==============================

func TestNewValidation(t *testing.T) {
	if _, err := New[string, string]("x", nil, Options[string, string]{}); err == nil {
		t.Fatalf("nil fetcher accepted")
	}
	fetch := func(_ context.Context, k string) (string, error) { return k, nil }
	if _, err := New("", fetch, Options[string, string]{}); err == nil {
		t.Fatalf("empty name without registry accepted")
	}

	reg := NewRegistry()
	c, err := New("", fetch, Options[string, string]{Registry: reg})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Dispose()
	if !strings.HasPrefix(c.Name(), "cache-") {
		t.Fatalf("generated name=%q", c.Name())
	}
}
