package swrcache

import "time"

type entry[K any, V any] struct {
	key      K
	value    V
	hasValue bool
	promise  *Promise[V]

	refCount   int
	createdAt  time.Time
	accessedAt time.Time

	stale    bool
	fetching bool
	failed   bool
	err      error
}

// EntryInfo is a point-in-time copy of an entry handed to strategies.
type EntryInfo[K any, V any] struct {
	Key        K
	Value      V
	HasValue   bool
	RefCount   int
	CreatedAt  time.Time
	AccessedAt time.Time
	Stale      bool
	Fetching   bool
	Failed     bool
	Err        error
}

func (e *entry[K, V]) info() EntryInfo[K, V] {
	return EntryInfo[K, V]{
		Key:        e.key,
		Value:      e.value,
		HasValue:   e.hasValue,
		RefCount:   e.refCount,
		CreatedAt:  e.createdAt,
		AccessedAt: e.accessedAt,
		Stale:      e.stale,
		Fetching:   e.fetching,
		Failed:     e.failed,
		Err:        e.err,
	}
}
