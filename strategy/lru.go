package strategy

import (
	"sort"

	"github.com/unkn0wn-root/swrcache"
)

// LRU caps the number of entries at maxSize. Whenever a fetch starts or a
// value is set and the cache is over the cap, entries are evicted until it is
// not. Unreferenced entries always go before referenced ones; within each
// group the least recently accessed goes first.
func LRU[K any, V any](maxSize int) swrcache.Strategy[K, V] {
	return func(api *swrcache.API[K, V]) *swrcache.Hooks[K, V] {
		evict := func(K, swrcache.EntryInfo[K, V]) {
			over := api.Size() - maxSize
			if maxSize < 0 || over <= 0 {
				return
			}

			victims := make([]swrcache.EntryInfo[K, V], 0, api.Size())
			api.Iterate(func(_ K, e swrcache.EntryInfo[K, V]) bool {
				victims = append(victims, e)
				return true
			})
			sort.SliceStable(victims, func(i, j int) bool {
				ri, rj := victims[i].RefCount > 0, victims[j].RefCount > 0
				if ri != rj {
					return !ri
				}
				return victims[i].AccessedAt.Before(victims[j].AccessedAt)
			})

			for _, v := range victims[:over] {
				api.Delete(v.Key)
			}
			api.Logger().Debug("lru evicted", swrcache.Fields{"cache": api.Name(), "count": over})
		}
		return &swrcache.Hooks[K, V]{
			OnFetch: evict,
			OnSet:   evict,
		}
	}
}
