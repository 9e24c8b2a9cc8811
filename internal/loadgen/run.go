// Package loadgen drives a cache with a skewed key workload and reports how
// well deduplication and the configured strategies held up.
package loadgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/swrcache"
	"github.com/unkn0wn-root/swrcache/observe"
	"github.com/unkn0wn-root/swrcache/strategy"
)

// Report is printed as JSON by cmd/swrload.
type Report struct {
	Accesses   int               `json:"accesses"`
	Fetches    int64             `json:"fetches"`
	Failures   int64             `json:"failures"`
	Errors     int               `json:"errors"`
	DedupRatio float64           `json:"dedup_ratio"`
	HitRatio   float64           `json:"hit_ratio"`
	FinalSize  int               `json:"final_size"`
	Events     map[string]uint64 `json:"events"`
	Elapsed    time.Duration     `json:"elapsed_ns"`
	Snapshot   *SnapshotReport   `json:"snapshot,omitempty"`
}

type SnapshotReport struct {
	Backend  string `json:"backend"`
	Saved    int    `json:"saved"`
	Hydrated int    `json:"hydrated"`
}

var errInjected = errors.New("loadgen: injected fetch failure")

// Strategies translates the config into strategies, in the order LRU, StaleOn,
// EvictOn. Disabled conditions are left out.
func Strategies(cfg *Config) []swrcache.Strategy[int, string] {
	var out []swrcache.Strategy[int, string]
	if cfg.LRUSize > 0 {
		out = append(out, strategy.LRU[int, string](cfg.LRUSize))
	}

	var stale []strategy.StaleOption
	if cfg.StaleAfter > 0 {
		stale = append(stale, strategy.StaleAfter(cfg.StaleAfter))
	}
	if cfg.StaleIdle > 0 {
		stale = append(stale, strategy.StaleIdle(cfg.StaleIdle))
	}
	if cfg.StaleOnError {
		stale = append(stale, strategy.StaleOnError())
	}
	if len(stale) > 0 {
		out = append(out, strategy.StaleOn[int, string](stale...))
	}

	var evict []strategy.EvictOption
	if cfg.EvictAfter > 0 {
		evict = append(evict, strategy.EvictAfter(cfg.EvictAfter))
	}
	if cfg.EvictIdle >= 0 {
		evict = append(evict, strategy.EvictIdle(cfg.EvictIdle))
	}
	if cfg.EvictOnError {
		evict = append(evict, strategy.EvictOnError())
	}
	if len(evict) > 0 {
		out = append(out, strategy.EvictOn[int, string](evict...))
	}
	return out
}

// fetcher simulates a slow backend that fails at the configured rate.
type fetcher struct {
	latency time.Duration
	errRate float64
	calls   atomic.Int64
	fails   atomic.Int64

	mu  sync.Mutex
	rng *rand.Rand
}

func newFetcher(cfg *Config) *fetcher {
	return &fetcher{
		latency: cfg.FetchLatency,
		errRate: cfg.ErrorRate,
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5f3759df)),
	}
}

func (f *fetcher) fetch(ctx context.Context, key int) (string, error) {
	f.calls.Add(1)
	if f.latency > 0 {
		t := time.NewTimer(f.latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	fail := f.rng.Float64() < f.errRate
	f.mu.Unlock()
	if fail {
		f.fails.Add(1)
		return "", errInjected
	}
	return fmt.Sprintf("value-%d", key), nil
}

// Run executes the workload described by cfg.
func Run(ctx context.Context, cfg *Config, log swrcache.Logger) (*Report, error) {
	if log == nil {
		log = swrcache.NopLogger{}
	}
	reg := swrcache.NewRegistry()
	f := newFetcher(cfg)
	counters := new(observe.Counters)

	use := append(Strategies(cfg), observe.Strategy[int, string](counters))
	c, err := swrcache.New("loadgen", f.fetch, swrcache.Options[int, string]{
		Use:      use,
		Logger:   log,
		Registry: reg,
		Context:  ctx,
	})
	if err != nil {
		return nil, err
	}
	defer c.Dispose()

	keys := Zipf(cfg.Accesses, cfg.Keys, cfg.Theta, cfg.Seed)
	log.Info("workload generated", swrcache.Fields{"accesses": len(keys), "keys": cfg.Keys, "theta": cfg.Theta})

	start := time.Now()
	var failed atomic.Int64
	work := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := range work {
				if err := access(ctx, c, k, cfg.HoldFor); err != nil {
					failed.Add(1)
				}
			}
		}()
	}
feed:
	for _, k := range keys {
		select {
		case work <- k:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rep := &Report{
		Accesses:  len(keys),
		Fetches:   f.calls.Load(),
		Failures:  f.fails.Load(),
		Errors:    int(failed.Load()),
		FinalSize: c.Len(),
		Events:    counters.Snapshot(),
		Elapsed:   time.Since(start),
	}
	if rep.Fetches > 0 {
		rep.DedupRatio = float64(rep.Accesses) / float64(rep.Fetches)
		rep.HitRatio = 1 - float64(rep.Fetches)/float64(max(rep.Accesses, 1))
	}

	if sc := cfg.Snapshot; sc.Backend != "" && sc.Backend != "none" {
		sr, err := roundTrip(ctx, cfg, c, reg, log)
		if err != nil {
			return nil, err
		}
		rep.Snapshot = sr
	}
	log.Info("run finished", swrcache.Fields{"fetches": rep.Fetches, "errors": rep.Errors, "elapsed": rep.Elapsed})
	return rep, nil
}

func access(ctx context.Context, c *swrcache.Cache[int, string], key int, hold time.Duration) error {
	ref, err := c.Get(key)
	if err != nil {
		return err
	}
	defer ref.Unref()
	if _, err := ref.Await(ctx); err != nil {
		return err
	}
	if hold > 0 {
		time.Sleep(hold)
	}
	return nil
}
