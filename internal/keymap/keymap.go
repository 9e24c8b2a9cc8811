// Package keymap implements a map that accepts arbitrary key values and
// indexes them by their canonical string form.
//
// Structurally equal keys address the same slot no matter which instance is
// passed in; the first key stored for a slot is the one reported back during
// iteration. Iteration follows insertion order.
package keymap

import (
	"container/list"

	"github.com/unkn0wn-root/swrcache/internal/canon"
)

type item[K any, E any] struct {
	canon string
	key   K
	val   E
}

// Map is not safe for concurrent use; callers provide their own locking.
type Map[K any, E any] struct {
	stringify func(K) string
	index     map[string]*list.Element
	order     *list.List
}

// New returns an empty Map. A nil stringify uses KeyString's default rules.
func New[K any, E any](stringify func(K) string) *Map[K, E] {
	return &Map[K, E]{
		stringify: stringify,
		index:     make(map[string]*list.Element),
		order:     list.New(),
	}
}

// KeyString returns the canonical string for key. Scalars (strings, numbers,
// booleans, nil) skip canonicalization; strings pass through verbatim. With an
// interface key type this folds kinds together: "1" and 1 share a slot, as do
// "true" and true, and nil and "null". Pass a stringify to New to keep them
// apart. A cyclic key panics with *canon.CycleError.
func (m *Map[K, E]) KeyString(key K) string {
	if m.stringify != nil {
		return m.stringify(key)
	}
	if s, ok := canon.Scalar(any(key)); ok {
		return s
	}
	return canon.Stringify(any(key))
}

func (m *Map[K, E]) Len() int { return len(m.index) }

func (m *Map[K, E]) Get(key K) (E, bool) {
	return m.GetString(m.KeyString(key))
}

// GetString looks up an already canonicalized key.
func (m *Map[K, E]) GetString(s string) (E, bool) {
	if el, ok := m.index[s]; ok {
		return el.Value.(*item[K, E]).val, true
	}
	var zero E
	return zero, false
}

func (m *Map[K, E]) Has(key K) bool {
	_, ok := m.index[m.KeyString(key)]
	return ok
}

// Set stores val under key. Updating an existing slot keeps its position and
// its original key.
func (m *Map[K, E]) Set(key K, val E) {
	s := m.KeyString(key)
	if el, ok := m.index[s]; ok {
		el.Value.(*item[K, E]).val = val
		return
	}
	m.index[s] = m.order.PushBack(&item[K, E]{canon: s, key: key, val: val})
}

func (m *Map[K, E]) Delete(key K) bool {
	s := m.KeyString(key)
	el, ok := m.index[s]
	if !ok {
		return false
	}
	m.order.Remove(el)
	delete(m.index, s)
	return true
}

func (m *Map[K, E]) Clear() {
	m.index = make(map[string]*list.Element)
	m.order.Init()
}

// Range calls fn for every entry in insertion order until fn returns false.
// fn may delete the entry it is visiting.
func (m *Map[K, E]) Range(fn func(key K, val E) bool) {
	for el := m.order.Front(); el != nil; {
		next := el.Next()
		it := el.Value.(*item[K, E])
		if !fn(it.key, it.val) {
			return
		}
		el = next
	}
}

// RangeString is Range with the canonical string of each key.
func (m *Map[K, E]) RangeString(fn func(s string, key K, val E) bool) {
	for el := m.order.Front(); el != nil; {
		next := el.Next()
		it := el.Value.(*item[K, E])
		if !fn(it.canon, it.key, it.val) {
			return
		}
		el = next
	}
}

func (m *Map[K, E]) Keys() []K {
	out := make([]K, 0, m.Len())
	m.Range(func(k K, _ E) bool {
		out = append(out, k)
		return true
	})
	return out
}

func (m *Map[K, E]) Values() []E {
	out := make([]E, 0, m.Len())
	m.Range(func(_ K, v E) bool {
		out = append(out, v)
		return true
	})
	return out
}

// Entry is one key/value pair returned by Entries.
type Entry[K any, E any] struct {
	Key   K
	Value E
}

func (m *Map[K, E]) Entries() []Entry[K, E] {
	out := make([]Entry[K, E], 0, m.Len())
	m.Range(func(k K, v E) bool {
		out = append(out, Entry[K, E]{Key: k, Value: v})
		return true
	})
	return out
}
