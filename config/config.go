// Package config loads an output cache setup from YAML and builds the
// provider, tag store and assignment store it names.
//
//	namespace: shop:prod:pages
//	default_ttl: 10m
//	unrecognized_pointer: serve        # or fallback
//	setting_tags: [setting:splittest.assignment]
//	provider:
//	  kind: ristretto                  # ristretto | bigcache | redis
//	  ristretto: {num_counters: 100000, max_cost: 67108864, buffer_items: 64}
//	tags:
//	  kind: local                      # local | redis
//	  retention: 720h
//	assignment:
//	  store: cookie                    # cookie | memory | redis
//	  codec: cbor
//	  policy: first_write_wins
//
// Environment variables override the file: VARIANTCACHE_NAMESPACE,
// VARIANTCACHE_DISABLED, VARIANTCACHE_REDIS_ADDR.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/variantcache/assignment"
)

type Config struct {
	Namespace           string        `yaml:"namespace"`
	DefaultTTL          time.Duration `yaml:"default_ttl"`
	Disabled            bool          `yaml:"disabled"`
	UnrecognizedPointer string        `yaml:"unrecognized_pointer"`
	SettingTags         []string      `yaml:"setting_tags"`

	Redis      RedisConfig      `yaml:"redis"`
	Provider   ProviderConfig   `yaml:"provider"`
	Tags       TagsConfig       `yaml:"tags"`
	Assignment AssignmentConfig `yaml:"assignment"`
}

// RedisConfig is the connection shared by every redis-backed component.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ProviderConfig struct {
	Kind      string          `yaml:"kind"`
	Ristretto RistrettoConfig `yaml:"ristretto"`
	BigCache  BigCacheConfig  `yaml:"bigcache"`
}

type RistrettoConfig struct {
	NumCounters int64 `yaml:"num_counters"`
	MaxCost     int64 `yaml:"max_cost"`
	BufferItems int64 `yaml:"buffer_items"`
	Metrics     bool  `yaml:"metrics"`
}

type BigCacheConfig struct {
	LifeWindow         time.Duration `yaml:"life_window"`
	CleanWindow        time.Duration `yaml:"clean_window"`
	Shards             int           `yaml:"shards"`
	MaxEntriesInWindow int           `yaml:"max_entries_in_window"`
	MaxEntrySize       int           `yaml:"max_entry_size"`
	HardMaxCacheSizeMB int           `yaml:"hard_max_cache_size_mb"`
}

type TagsConfig struct {
	Kind            string        `yaml:"kind"`
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	Retention       time.Duration `yaml:"retention"`
}

type AssignmentConfig struct {
	Store        string        `yaml:"store"`
	Codec        string        `yaml:"codec"`
	Policy       string        `yaml:"policy"`
	MaxDecode    int           `yaml:"max_decode"`
	CookiePrefix string        `yaml:"cookie_prefix"`
	CookieDomain string        `yaml:"cookie_domain"`
	Secure       bool          `yaml:"secure"`
	HTTPOnly     bool          `yaml:"http_only"`
	MaxAge       time.Duration `yaml:"max_age"`
}

// Default returns a single node setup: ristretto, local tags, cookies.
func Default() Config {
	return Config{
		Namespace:           "pages",
		DefaultTTL:          10 * time.Minute,
		UnrecognizedPointer: "serve",
		Provider: ProviderConfig{
			Kind:      "ristretto",
			Ristretto: RistrettoConfig{NumCounters: 100_000, MaxCost: 64 << 20, BufferItems: 64},
		},
		Tags:       TagsConfig{Kind: "local"},
		Assignment: AssignmentConfig{Store: "cookie", Codec: "cbor", HTTPOnly: true},
	}
}

// Load reads path over Default, applies environment overrides and validates.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse is Load for an in-memory document.
func Parse(data []byte) (Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := c.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("VARIANTCACHE_NAMESPACE"); v != "" {
		c.Namespace = v
	}
	if v := os.Getenv("VARIANTCACHE_DISABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("VARIANTCACHE_DISABLED: %w", err)
		}
		c.Disabled = b
	}
	if v := os.Getenv("VARIANTCACHE_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	return nil
}

// Validate checks kinds and cross-field requirements.
func (c Config) Validate() error {
	var errs []error
	if c.Namespace == "" {
		errs = append(errs, errors.New("namespace is required"))
	}
	if c.DefaultTTL < 0 {
		errs = append(errs, errors.New("default_ttl must not be negative"))
	}
	switch c.UnrecognizedPointer {
	case "", "serve", "fallback":
	default:
		errs = append(errs, fmt.Errorf("unrecognized_pointer: unknown policy %q", c.UnrecognizedPointer))
	}

	needRedis := false
	switch c.Provider.Kind {
	case "ristretto", "bigcache":
	case "redis":
		needRedis = true
	default:
		errs = append(errs, fmt.Errorf("provider.kind: unknown %q", c.Provider.Kind))
	}
	switch c.Tags.Kind {
	case "", "local":
		if c.Tags.Retention < 0 {
			errs = append(errs, errors.New("tags.retention must not be negative"))
		} else if r, ttl := orDefault(c.Tags.Retention, 30*24*time.Hour), orDefault(c.DefaultTTL, 10*time.Minute); r <= ttl {
			// a pruned tag reads as generation 0 and would revalidate live entries
			errs = append(errs, fmt.Errorf("tags.retention %v must exceed default_ttl %v", r, ttl))
		}
	case "redis":
		needRedis = true
	default:
		errs = append(errs, fmt.Errorf("tags.kind: unknown %q", c.Tags.Kind))
	}
	switch c.Assignment.Store {
	case "", "cookie", "memory":
	case "redis":
		needRedis = true
	default:
		errs = append(errs, fmt.Errorf("assignment.store: unknown %q", c.Assignment.Store))
	}
	switch c.Assignment.Codec {
	case "", "cbor", "msgpack", "json", "protobuf":
	default:
		errs = append(errs, fmt.Errorf("assignment.codec: unknown %q", c.Assignment.Codec))
	}
	if _, err := assignment.ParsePolicy(c.Assignment.Policy); err != nil {
		errs = append(errs, err)
	}
	if needRedis && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required by a redis-backed component"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// orDefault mirrors the zero-value defaults the cache applies.
func orDefault(d, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}
	return d
}
