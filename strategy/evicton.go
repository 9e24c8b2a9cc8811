package strategy

import (
	"time"

	"github.com/unkn0wn-root/swrcache"
)

type evictConfig struct {
	after    time.Duration
	hasAfter bool
	idle     time.Duration
	hasIdle  bool
	onError  bool
	onStale  bool
}

// EvictOption enables one EvictOn condition. Conditions are OR'd.
type EvictOption func(*evictConfig)

// EvictAfter evicts entries older than d, measured from creation.
func EvictAfter(d time.Duration) EvictOption {
	return func(c *evictConfig) { c.after, c.hasAfter = d, true }
}

// EvictIdle evicts unreferenced entries once d has passed since their last
// release. EvictIdle(0) evicts an entry the moment its RefCount drops to zero.
func EvictIdle(d time.Duration) EvictOption {
	return func(c *evictConfig) { c.idle, c.hasIdle = d, true }
}

// EvictOnError evicts an entry as soon as its fetch fails.
func EvictOnError() EvictOption {
	return func(c *evictConfig) { c.onError = true }
}

// EvictOnStale evicts an entry as soon as it is marked stale.
func EvictOnStale() EvictOption {
	return func(c *evictConfig) { c.onStale = true }
}

// EvictOn removes entries according to opts. Time based conditions are
// checked lazily: on every access (for all other keys) and on release.
func EvictOn[K any, V any](opts ...EvictOption) swrcache.Strategy[K, V] {
	var cfg evictConfig
	for _, o := range opts {
		o(&cfg)
	}

	return func(api *swrcache.API[K, V]) *swrcache.Hooks[K, V] {
		releasedAt := make(map[string]time.Time)

		expired := func(k string, e swrcache.EntryInfo[K, V], now time.Time) bool {
			if cfg.hasAfter && now.Sub(e.CreatedAt) > cfg.after {
				return true
			}
			if cfg.hasIdle && e.RefCount == 0 {
				if at, ok := releasedAt[k]; ok && now.Sub(at) > cfg.idle {
					return true
				}
			}
			return (cfg.onError && e.Failed) || (cfg.onStale && e.Stale)
		}

		cleanup := func(skip string) {
			now := api.Now()
			evicted := 0
			api.Iterate(func(key K, e swrcache.EntryInfo[K, V]) bool {
				k := api.KeyString(key)
				if k != skip && expired(k, e, now) && api.Delete(key) {
					evicted++
				}
				return true
			})
			if evicted > 0 {
				api.Logger().Debug("evicted expired entries", swrcache.Fields{"cache": api.Name(), "count": evicted})
			}
		}

		h := &swrcache.Hooks[K, V]{
			OnAccess: func(key K, _ swrcache.EntryInfo[K, V]) {
				k := api.KeyString(key)
				delete(releasedAt, k)
				cleanup(k)
			},
			OnDelete: func(key K) {
				delete(releasedAt, api.KeyString(key))
			},
			OnClear: func() {
				clear(releasedAt)
			},
		}
		if cfg.hasIdle {
			h.OnRelease = func(key K, e swrcache.EntryInfo[K, V]) {
				if e.RefCount > 0 {
					return
				}
				if cfg.idle <= 0 {
					api.Delete(key)
					return
				}
				releasedAt[api.KeyString(key)] = api.Now()
			}
		}
		if cfg.onError {
			h.OnError = func(key K, _ swrcache.EntryInfo[K, V], _ error) {
				api.Delete(key)
			}
		}
		if cfg.onStale {
			h.OnStale = func(key K, _ swrcache.EntryInfo[K, V]) {
				api.Delete(key)
			}
		}
		return h
	}
}
