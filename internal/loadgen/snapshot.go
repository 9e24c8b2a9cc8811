package loadgen

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/swrcache"
	"github.com/unkn0wn-root/swrcache/codec"
	"github.com/unkn0wn-root/swrcache/provider"
	"github.com/unkn0wn-root/swrcache/provider/bigcache"
	"github.com/unkn0wn-root/swrcache/provider/redis"
	"github.com/unkn0wn-root/swrcache/provider/ristretto"
	"github.com/unkn0wn-root/swrcache/snapshot"
	"github.com/unkn0wn-root/swrcache/strategy"
)

// NewProvider opens the snapshot backend named in cfg.
func NewProvider(ctx context.Context, cfg SnapshotConfig) (provider.Provider, error) {
	switch cfg.Backend {
	case "ristretto":
		return ristretto.New(ristretto.Config{NumCounters: 1e4, MaxCost: 64 << 20, BufferItems: 64, Wait: true})
	case "bigcache":
		return bigcache.New(ctx, bigcache.Config{LifeWindow: max(cfg.TTL, time.Minute)})
	case "redis":
		return redis.New(redis.Config{
			Client:      goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr}),
			CloseClient: true,
		})
	}
	return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Backend)
}

// NewCodec picks the value codec, optionally zstd-compressed.
func NewCodec(cfg SnapshotConfig) (codec.Codec[string], error) {
	var c codec.Codec[string]
	switch cfg.Codec {
	case "", "json":
		c = codec.JSON[string]{}
	case "msgpack":
		c = codec.Msgpack[string]{}
	case "cbor":
		cb, err := codec.NewCBOR[string](true)
		if err != nil {
			return nil, err
		}
		c = cb
	default:
		return nil, fmt.Errorf("unknown snapshot codec %q", cfg.Codec)
	}
	if cfg.Zstd {
		c = codec.Zstd[string]{Inner: c}
	}
	return c, nil
}

// roundTrip saves the cache, hydrates a fresh cache from the saved snapshot
// and counts what came back.
func roundTrip(ctx context.Context, cfg *Config, c *swrcache.Cache[int, string], reg *swrcache.Registry, log swrcache.Logger) (*SnapshotReport, error) {
	p, err := NewProvider(ctx, cfg.Snapshot)
	if err != nil {
		return nil, err
	}
	defer p.Close(ctx)

	cd, err := NewCodec(cfg.Snapshot)
	if err != nil {
		return nil, err
	}
	store := &snapshot.Store[string]{Provider: p, Codec: cd, TTL: cfg.Snapshot.TTL, Logger: log}

	snap := c.Extract()
	if err := store.Save(ctx, c.Name(), snap); err != nil {
		return nil, err
	}

	warm, err := swrcache.New("", func(context.Context, int) (string, error) {
		return "", fmt.Errorf("hydrated cache should not fetch")
	}, swrcache.Options[int, string]{
		Registry: reg,
		Logger:   log,
		Use: []swrcache.Strategy[int, string]{
			strategy.Hydrate(strategy.HydrateOptions[int, string]{Source: store.Source(ctx, c.Name())}),
		},
	})
	if err != nil {
		return nil, err
	}
	defer warm.Dispose()

	return &SnapshotReport{Backend: cfg.Snapshot.Backend, Saved: len(snap), Hydrated: warm.Len()}, nil
}
