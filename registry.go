package swrcache

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Registry hands out unique cache names and tracks which caches are alive.
// Share one per application (or per test) instead of relying on globals.
type Registry struct {
	seq atomic.Uint64

	mu   sync.Mutex
	live map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{live: make(map[string]struct{})}
}

// NextName returns prefix-N with N increasing for every call.
func (r *Registry) NextName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, r.seq.Add(1))
}

// Names lists live caches in lexical order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.live))
	for n := range r.live {
		out = append(out, n)
	}
	r.mu.Unlock()
	sort.Strings(out)
	return out
}

func (r *Registry) register(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.live == nil {
		r.live = make(map[string]struct{})
	}
	if _, dup := r.live[name]; dup {
		return fmt.Errorf("swrcache: cache %q already registered", name)
	}
	r.live[name] = struct{}{}
	return nil
}

func (r *Registry) unregister(name string) {
	r.mu.Lock()
	delete(r.live, name)
	r.mu.Unlock()
}
