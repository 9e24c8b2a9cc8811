package strategy

import (
	"time"

	"github.com/unkn0wn-root/swrcache"
)

type staleConfig struct {
	after    time.Duration
	hasAfter bool
	idle     time.Duration
	hasIdle  bool
	onError  bool
}

// StaleOption enables one StaleOn condition. Conditions are OR'd.
type StaleOption func(*staleConfig)

// StaleAfter marks an entry stale when it is accessed more than d after its
// value was last set (or after creation if it never resolved). Unlike a TTL
// counted from creation, every Set, Refresh or revalidation restarts the
// window, so an entry kept fresh by refreshes never goes stale on age alone.
func StaleAfter(d time.Duration) StaleOption {
	return func(c *staleConfig) { c.after, c.hasAfter = d, true }
}

// StaleIdle marks an entry stale when it is accessed more than d after its
// last reference was released.
func StaleIdle(d time.Duration) StaleOption {
	return func(c *staleConfig) { c.idle, c.hasIdle = d, true }
}

// StaleOnError marks an entry stale as soon as its fetch fails, so the next
// access retries.
func StaleOnError() StaleOption {
	return func(c *staleConfig) { c.onError = true }
}

// StaleOn marks entries stale according to opts. Marking never fetches; the
// next access revalidates.
func StaleOn[K any, V any](opts ...StaleOption) swrcache.Strategy[K, V] {
	var cfg staleConfig
	for _, o := range opts {
		o(&cfg)
	}

	return func(api *swrcache.API[K, V]) *swrcache.Hooks[K, V] {
		setAt := make(map[string]time.Time)
		releasedAt := make(map[string]time.Time)

		h := &swrcache.Hooks[K, V]{
			OnAccess: func(key K, e swrcache.EntryInfo[K, V]) {
				now := api.Now()
				k := api.KeyString(key)

				stale := false
				if cfg.hasIdle {
					if at, ok := releasedAt[k]; ok {
						delete(releasedAt, k)
						stale = now.Sub(at) > cfg.idle
					}
				}
				if !stale && cfg.hasAfter && !e.Stale {
					born := e.CreatedAt
					if at, ok := setAt[k]; ok && at.After(born) {
						born = at
					}
					stale = now.Sub(born) > cfg.after
				}
				if stale && !e.Stale {
					api.Stale(key)
				}
			},
			OnDelete: func(key K) {
				k := api.KeyString(key)
				delete(setAt, k)
				delete(releasedAt, k)
			},
			OnClear: func() {
				clear(setAt)
				clear(releasedAt)
			},
		}
		if cfg.hasAfter {
			h.OnSet = func(key K, _ swrcache.EntryInfo[K, V]) {
				setAt[api.KeyString(key)] = api.Now()
			}
		}
		if cfg.hasIdle {
			h.OnRelease = func(key K, e swrcache.EntryInfo[K, V]) {
				if e.RefCount == 0 {
					releasedAt[api.KeyString(key)] = api.Now()
				}
			}
		}
		if cfg.onError {
			h.OnError = func(key K, _ swrcache.EntryInfo[K, V], _ error) {
				api.Stale(key)
			}
		}
		return h
	}
}
