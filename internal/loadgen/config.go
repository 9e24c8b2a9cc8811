package loadgen

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config drives one load run. Every key can also be set from the environment
// as SWRLOAD_<KEY>, with dots replaced by underscores (SWRLOAD_LOG_LEVEL).
type Config struct {
	Keys     int     `mapstructure:"keys"`
	Accesses int     `mapstructure:"accesses"`
	Workers  int     `mapstructure:"workers"`
	Theta    float64 `mapstructure:"theta"`
	Seed     uint64  `mapstructure:"seed"`

	FetchLatency time.Duration `mapstructure:"fetch_latency"`
	ErrorRate    float64       `mapstructure:"error_rate"`
	HoldFor      time.Duration `mapstructure:"hold_for"`

	LRUSize      int           `mapstructure:"lru_size"`
	StaleAfter   time.Duration `mapstructure:"stale_after"`
	StaleIdle    time.Duration `mapstructure:"stale_idle"`
	StaleOnError bool          `mapstructure:"stale_on_error"`
	EvictAfter   time.Duration `mapstructure:"evict_after"`
	// EvictIdle < 0 disables idle eviction; 0 evicts on the last release.
	EvictIdle    time.Duration `mapstructure:"evict_idle"`
	EvictOnError bool          `mapstructure:"evict_on_error"`

	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Log      LogConfig      `mapstructure:"log"`
}

// SnapshotConfig saves the final cache contents and hydrates a second cache
// from them, reporting how many entries survived the round trip.
type SnapshotConfig struct {
	Backend   string        `mapstructure:"backend"` // none, ristretto, bigcache, redis
	Codec     string        `mapstructure:"codec"`   // json, msgpack, cbor
	Zstd      bool          `mapstructure:"zstd"`
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("keys", 1000)
	v.SetDefault("accesses", 100000)
	v.SetDefault("workers", 8)
	v.SetDefault("theta", 0.99)
	v.SetDefault("seed", 42)
	v.SetDefault("fetch_latency", "2ms")
	v.SetDefault("error_rate", 0.0)
	v.SetDefault("hold_for", "0s")
	v.SetDefault("lru_size", 256)
	v.SetDefault("stale_after", "0s")
	v.SetDefault("stale_idle", "0s")
	v.SetDefault("stale_on_error", true)
	v.SetDefault("evict_after", "0s")
	v.SetDefault("evict_idle", "-1s")
	v.SetDefault("evict_on_error", false)

	v.SetDefault("snapshot.backend", "none")
	v.SetDefault("snapshot.codec", "json")
	v.SetDefault("snapshot.zstd", false)
	v.SetDefault("snapshot.redis_addr", "localhost:6379")
	v.SetDefault("snapshot.ttl", "10m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.compress", true)
}

// Load reads path (any format viper understands) over the defaults. An empty
// path uses defaults and the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SWRLOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc())
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Keys <= 0 {
		errs = append(errs, errors.New("keys must be positive"))
	}
	if c.Accesses < 0 {
		errs = append(errs, errors.New("accesses must not be negative"))
	}
	if c.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.Theta <= 0 || c.Theta == 1 {
		errs = append(errs, errors.New("theta must be positive and not 1"))
	}
	if c.ErrorRate < 0 || c.ErrorRate > 1 {
		errs = append(errs, errors.New("error_rate must be within [0,1]"))
	}
	switch c.Snapshot.Backend {
	case "", "none", "ristretto", "bigcache", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown snapshot backend %q", c.Snapshot.Backend))
	}
	switch c.Snapshot.Codec {
	case "", "json", "msgpack", "cbor":
	default:
		errs = append(errs, fmt.Errorf("unknown snapshot codec %q", c.Snapshot.Codec))
	}
	return errors.Join(errs...)
}
