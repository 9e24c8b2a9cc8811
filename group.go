package swrcache

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Group bundles independent caches, one per named operation, that share the
// same options and strategies.
type Group[K any, V any] struct {
	name   string
	ops    []string
	caches map[string]*Cache[K, V]
}

// NewGroup builds one cache per fetcher. Member caches are named
// "<name>.<operation>".
func NewGroup[K any, V any](name string, fetchers map[string]Fetcher[K, V], opts Options[K, V]) (*Group[K, V], error) {
	if name == "" {
		if opts.Registry == nil {
			return nil, fmt.Errorf("swrcache: group name is required without a registry")
		}
		name = opts.Registry.NextName("group")
	}

	ops := make([]string, 0, len(fetchers))
	for op := range fetchers {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	g := &Group[K, V]{name: name, ops: ops, caches: make(map[string]*Cache[K, V], len(ops))}
	for _, op := range ops {
		c, err := New(name+"."+op, fetchers[op], opts)
		if err != nil {
			g.Dispose()
			return nil, fmt.Errorf("swrcache: group %q operation %q: %w", name, op, err)
		}
		g.caches[op] = c
	}
	return g, nil
}

func (g *Group[K, V]) Name() string { return g.name }

// Operations lists member operation names in lexical order.
func (g *Group[K, V]) Operations() []string {
	return append([]string(nil), g.ops...)
}

func (g *Group[K, V]) Cache(op string) (*Cache[K, V], bool) {
	c, ok := g.caches[op]
	return c, ok
}

// Get is Cache(op).Get(key).
func (g *Group[K, V]) Get(op string, key K) (*Ref[V], error) {
	c, ok := g.caches[op]
	if !ok {
		return nil, fmt.Errorf("swrcache: group %q has no operation %q", g.name, op)
	}
	return c.Get(key)
}

func (g *Group[K, V]) StaleAll() {
	for _, op := range g.ops {
		g.caches[op].StaleAll()
	}
}

func (g *Group[K, V]) ClearAll() {
	for _, op := range g.ops {
		g.caches[op].Clear()
	}
}

// RefreshAll refreshes every member concurrently and joins their errors.
func (g *Group[K, V]) RefreshAll(ctx context.Context) error {
	errc := make(chan error, len(g.ops))
	for _, op := range g.ops {
		go func(c *Cache[K, V]) { errc <- c.RefreshAll(ctx) }(g.caches[op])
	}
	var errs []error
	for range g.ops {
		if err := <-errc; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Extract nests each member's snapshot under its operation name.
func (g *Group[K, V]) Extract() map[string]map[string]V {
	out := make(map[string]map[string]V, len(g.ops))
	for _, op := range g.ops {
		out[op] = g.caches[op].Extract()
	}
	return out
}

func (g *Group[K, V]) Dispose() {
	for _, op := range g.ops {
		if c, ok := g.caches[op]; ok {
			c.Dispose()
		}
	}
}
