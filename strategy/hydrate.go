package strategy

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/unkn0wn-root/swrcache"
)

// HydrateOptions configures Hydrate.
type HydrateOptions[K any, V any] struct {
	// Source returns the snapshot to install, typically the output of
	// Cache.Extract from another process. A nil map installs nothing.
	Source func() map[string]V
	// Stale marks every hydrated entry stale, so the first access serves the
	// hydrated value and revalidates in the background.
	Stale bool
	// Key turns a canonical key back into K. The default passes string kinds
	// through and JSON-decodes everything else.
	Key func(s string) (K, error)
}

// Hydrate seeds a new cache from a snapshot when the cache is created.
func Hydrate[K any, V any](opts HydrateOptions[K, V]) swrcache.Strategy[K, V] {
	decode := opts.Key
	if decode == nil {
		decode = DecodeKey[K]
	}
	return func(api *swrcache.API[K, V]) *swrcache.Hooks[K, V] {
		return &swrcache.Hooks[K, V]{
			OnInit: func() {
				if opts.Source == nil {
					return
				}
				snap := opts.Source()
				keys := make([]string, 0, len(snap))
				for s := range snap {
					keys = append(keys, s)
				}
				sort.Strings(keys)

				installed := 0
				for _, s := range keys {
					v := snap[s]
					key, err := decode(s)
					if err != nil {
						api.Logger().Warn("hydrate: skipping undecodable key", swrcache.Fields{"cache": api.Name(), "key": s, "err": err})
						continue
					}
					api.Set(key, v)
					if opts.Stale {
						api.Stale(key)
					}
					installed++
				}
				api.Logger().Debug("hydrated", swrcache.Fields{"cache": api.Name(), "entries": installed})
			},
		}
	}
}

// DecodeKey is the default inverse of key canonicalization.
func DecodeKey[K any](s string) (K, error) {
	var k K
	rv := reflect.ValueOf(&k).Elem()
	if rv.Kind() == reflect.String {
		rv.SetString(s)
		return k, nil
	}
	if err := json.Unmarshal([]byte(s), &k); err != nil {
		// An interface key that is not JSON was a plain string key.
		if rv.Kind() == reflect.Interface && reflect.TypeOf(s).AssignableTo(rv.Type()) {
			rv.Set(reflect.ValueOf(s))
			return k, nil
		}
		return k, fmt.Errorf("decode key %q: %w", s, err)
	}
	return k, nil
}
