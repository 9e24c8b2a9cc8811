package snapshot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/unkn0wn-root/swrcache"
	"github.com/unkn0wn-root/swrcache/codec"
	"github.com/unkn0wn-root/swrcache/provider"
)

const defaultPrefix = "swr:snap:"

// Store saves and loads snapshots by cache name. Only Provider is required.
type Store[V any] struct {
	Provider provider.Provider
	Codec    codec.Codec[V] // default codec.JSON
	Prefix   string         // default "swr:snap:"
	TTL      time.Duration  // 0 = no expiry where the provider supports it
	Logger   swrcache.Logger
}

func (s *Store[V]) codec() codec.Codec[V] {
	if s.Codec == nil {
		return codec.JSON[V]{}
	}
	return s.Codec
}

func (s *Store[V]) logger() swrcache.Logger {
	if s.Logger == nil {
		return swrcache.NopLogger{}
	}
	return s.Logger
}

func (s *Store[V]) key(name string) string {
	if s.Prefix == "" {
		return defaultPrefix + name
	}
	return s.Prefix + name
}

// Save writes snap under name. A write dropped by the provider's admission
// policy is logged, not returned.
func (s *Store[V]) Save(ctx context.Context, name string, snap map[string]V) error {
	b, err := Encode(s.codec(), snap)
	if err != nil {
		return err
	}
	ok, err := s.Provider.Set(ctx, s.key(name), b, int64(len(b)), s.TTL)
	if err != nil {
		return fmt.Errorf("snapshot: save %q: %w", name, err)
	}
	if !ok {
		s.logger().Warn("snapshot dropped by provider", swrcache.Fields{"cache": name, "bytes": len(b)})
		return nil
	}
	s.logger().Debug("snapshot saved", swrcache.Fields{"cache": name, "entries": len(snap), "bytes": len(b)})
	return nil
}

// SaveGroup saves every member snapshot of Group.Extract under the member
// cache name "<group>.<operation>".
func (s *Store[V]) SaveGroup(ctx context.Context, group string, snaps map[string]map[string]V) error {
	ops := make([]string, 0, len(snaps))
	for op := range snaps {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	for _, op := range ops {
		if err := s.Save(ctx, group+"."+op, snaps[op]); err != nil {
			return err
		}
	}
	return nil
}

// Load returns the snapshot saved under name. A corrupt frame is deleted from
// the provider and reported as a miss with an error wrapping ErrCorrupt.
func (s *Store[V]) Load(ctx context.Context, name string) (map[string]V, bool, error) {
	b, ok, err := s.Provider.Get(ctx, s.key(name))
	if err != nil {
		return nil, false, fmt.Errorf("snapshot: load %q: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}
	snap, err := Decode(s.codec(), b)
	if err != nil {
		s.logger().Warn("dropping corrupt snapshot", swrcache.Fields{"cache": name, "err": err})
		_ = s.Provider.Del(ctx, s.key(name))
		return nil, false, err
	}
	return snap, true, nil
}

func (s *Store[V]) Delete(ctx context.Context, name string) error {
	return s.Provider.Del(ctx, s.key(name))
}

// Source adapts Load for strategy.HydrateOptions.Source. Misses and errors
// hydrate nothing; errors are logged.
func (s *Store[V]) Source(ctx context.Context, name string) func() map[string]V {
	return func() map[string]V {
		snap, ok, err := s.Load(ctx, name)
		if err != nil {
			s.logger().Warn("snapshot unavailable", swrcache.Fields{"cache": name, "err": err})
			return nil
		}
		if !ok {
			return nil
		}
		return snap
	}
}
