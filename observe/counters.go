package observe

import "sync/atomic"

// Counters counts events per kind. The zero value is ready to use and cheap
// enough to observe synchronously.
type Counters struct {
	n [numKinds]atomic.Uint64
}

var _ Observer = (*Counters)(nil)

func (c *Counters) Observe(e Event) {
	if e.Kind < numKinds {
		c.n[e.Kind].Add(1)
	}
}

func (c *Counters) Get(k Kind) uint64 {
	if k >= numKinds {
		return 0
	}
	return c.n[k].Load()
}

// Snapshot returns every counter keyed by kind name.
func (c *Counters) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, numKinds)
	for k := Kind(0); k < numKinds; k++ {
		out[k.String()] = c.n[k].Load()
	}
	return out
}
