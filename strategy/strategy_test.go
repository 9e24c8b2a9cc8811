package strategy

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unkn0wn-root/swrcache"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type counter struct {
	mu    sync.Mutex
	calls map[string]int
	total atomic.Int32
}

func (c *counter) fetch(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[key]++
	c.mu.Unlock()
	c.total.Add(1)
	return "v:" + key, nil
}

func (c *counter) count(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[key]
}

func newCache(t *testing.T, fetch swrcache.Fetcher[string, string], clock swrcache.Clock, use ...swrcache.Strategy[string, string]) *swrcache.Cache[string, string] {
	t.Helper()
	c, err := swrcache.New(t.Name(), fetch, swrcache.Options[string, string]{Use: use, Clock: clock})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Dispose)
	return c
}

func get(t *testing.T, c *swrcache.Cache[string, string], key string) *swrcache.Ref[string] {
	t.Helper()
	r, err := c.Get(key)
	if err != nil {
		t.Fatalf("Get(%s): %v", key, err)
	}
	select {
	case <-r.Value().Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("Get(%s) never settled", key)
	}
	return r
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
