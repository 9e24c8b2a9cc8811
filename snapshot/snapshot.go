// Package snapshot persists Cache.Extract output in a provider so another
// process (or a later run) can seed its caches with strategy.Hydrate.
//
//	store := &snapshot.Store[User]{Provider: redisProvider}
//	_ = store.Save(ctx, users.Name(), users.Extract())
//
//	// elsewhere
//	strategy.Hydrate[string, User](strategy.HydrateOptions[string, User]{
//	    Source: store.Source(ctx, "users"),
//	})
package snapshot

import (
	"errors"
	"fmt"
	"sort"

	"github.com/unkn0wn-root/swrcache/codec"
	"github.com/unkn0wn-root/swrcache/internal/wire"
)

// ErrCorrupt is returned for frames that fail validation.
var ErrCorrupt = wire.ErrCorrupt

// Encode frames snap with values encoded by c. Keys are written in sorted
// order so equal snapshots produce equal bytes with a deterministic codec.
func Encode[V any](c codec.Codec[V], snap map[string]V) ([]byte, error) {
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([]wire.Item, 0, len(keys))
	for _, k := range keys {
		b, err := c.Encode(snap[k])
		if err != nil {
			return nil, fmt.Errorf("snapshot: encode %q: %w", k, err)
		}
		items = append(items, wire.Item{Key: k, Payload: b})
	}
	return wire.Encode(items)
}

// Decode is the inverse of Encode. A payload that c rejects fails the whole
// snapshot with an error wrapping ErrCorrupt.
func Decode[V any](c codec.Codec[V], b []byte) (map[string]V, error) {
	items, err := wire.Decode(b)
	if err != nil {
		return nil, err
	}
	out := make(map[string]V, len(items))
	for _, it := range items {
		v, err := c.Decode(it.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: value for %q: %w", ErrCorrupt, it.Key, err)
		}
		out[it.Key] = v
	}
	return out, nil
}

// IsCorrupt reports whether err came from a malformed frame or payload.
func IsCorrupt(err error) bool { return errors.Is(err, ErrCorrupt) }
