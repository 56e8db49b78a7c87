package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	vc "github.com/unkn0wn-root/variantcache"
	"github.com/unkn0wn-root/variantcache/assignment"
	pr "github.com/unkn0wn-root/variantcache/provider"
	bcp "github.com/unkn0wn-root/variantcache/provider/bigcache"
	rp "github.com/unkn0wn-root/variantcache/provider/redis"
	rcp "github.com/unkn0wn-root/variantcache/provider/ristretto"
	ts "github.com/unkn0wn-root/variantcache/tagstore"
)

// Deps are the host collaborators a config file can't describe.
type Deps struct {
	Registry vc.Registry // required
	Selector vc.Selector // required
	Logger   vc.Logger
	Hooks    vc.Hooks
	Redis    redis.UniversalClient // nil => dialed from Config.Redis when needed
}

// Stack is a built output cache plus the assignment store the config chose.
// Exactly one of Cookies, Memory and Sessions is set.
type Stack struct {
	Cache    vc.OutputCache
	Cookies  *assignment.CookieJar
	Memory   *assignment.Memory
	Sessions *assignment.Redis

	ownedRedis redis.UniversalClient
}

// Close closes the cache, then the redis client if Build dialed it.
func (s *Stack) Close(ctx context.Context) error {
	err := s.Cache.Close(ctx)
	if s.ownedRedis != nil {
		err = errors.Join(err, s.ownedRedis.Close())
	}
	return err
}

// Options maps the cache level settings. Provider, TagStore and the
// collaborators are left for Build.
func (c Config) Options() vc.Options {
	o := vc.Options{
		Namespace:       c.Namespace,
		DefaultTTL:      c.DefaultTTL,
		Disabled:        c.Disabled,
		SettingTags:     c.SettingTags,
		CleanupInterval: c.Tags.CleanupInterval,
		TagRetention:    c.Tags.Retention,
	}
	if c.UnrecognizedPointer == "fallback" {
		o.UnrecognizedPointer = vc.FallbackOnUnrecognizedPointer
	}
	return o
}

// Build assembles a Stack from a validated config.
func Build(ctx context.Context, c Config, d Deps) (*Stack, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	st := &Stack{}
	rdb := d.Redis
	client := func() redis.UniversalClient {
		if rdb == nil {
			rdb = redis.NewClient(&redis.Options{Addr: c.Redis.Addr, Password: c.Redis.Password, DB: c.Redis.DB})
			st.ownedRedis = rdb
		}
		return rdb
	}
	fail := func(err error) (*Stack, error) {
		if st.ownedRedis != nil {
			_ = st.ownedRedis.Close()
		}
		return nil, err
	}

	opts := c.Options()
	opts.Registry, opts.Selector = d.Registry, d.Selector
	opts.Logger, opts.Hooks = d.Logger, d.Hooks

	p, err := buildProvider(ctx, c.Provider, client)
	if err != nil {
		return fail(fmt.Errorf("provider: %w", err))
	}
	opts.Provider = p

	if c.Tags.Kind == "redis" {
		opts.TagStore = ts.NewRedis(client(), c.Namespace, c.Tags.TTL)
	}

	if err := buildAssignments(st, c, client); err != nil {
		_ = p.Close(ctx)
		return fail(fmt.Errorf("assignment: %w", err))
	}

	oc, err := vc.New(opts)
	if err != nil {
		_ = p.Close(ctx)
		return fail(err)
	}
	st.Cache = oc
	return st, nil
}

func buildProvider(ctx context.Context, c ProviderConfig, client func() redis.UniversalClient) (pr.Provider, error) {
	switch c.Kind {
	case "ristretto":
		r := c.Ristretto
		return rcp.New(rcp.Config{NumCounters: r.NumCounters, MaxCost: r.MaxCost, BufferItems: r.BufferItems, Metrics: r.Metrics})
	case "bigcache":
		b := c.BigCache
		return bcp.New(ctx, bcp.Config{
			LifeWindow:         b.LifeWindow,
			CleanWindow:        b.CleanWindow,
			Shards:             b.Shards,
			MaxEntriesInWindow: b.MaxEntriesInWindow,
			MaxEntrySize:       b.MaxEntrySize,
			HardMaxCacheSizeMB: b.HardMaxCacheSizeMB,
		})
	case "redis":
		return rp.New(rp.Config{Client: client()})
	}
	return nil, fmt.Errorf("unknown kind %q", c.Kind)
}

func buildAssignments(st *Stack, c Config, client func() redis.UniversalClient) error {
	a := c.Assignment
	pol, err := assignment.ParsePolicy(a.Policy)
	if err != nil {
		return err
	}
	cd, err := assignment.CodecByName(a.Codec)
	if err != nil {
		return err
	}
	switch a.Store {
	case "", "cookie":
		st.Cookies, err = assignment.NewCookieJar(assignment.CookieOptions{
			Prefix:    a.CookiePrefix,
			MaxAge:    a.MaxAge,
			Domain:    a.CookieDomain,
			Secure:    a.Secure,
			HTTPOnly:  a.HTTPOnly,
			Codec:     cd,
			MaxDecode: a.MaxDecode,
			Policy:    pol,
		})
		return err
	case "memory":
		st.Memory = assignment.NewMemory(pol)
		return nil
	case "redis":
		st.Sessions, err = assignment.NewRedis(assignment.RedisOptions{
			Client:    client(),
			Namespace: c.Namespace,
			TTL:       a.MaxAge,
			Codec:     cd,
			MaxDecode: a.MaxDecode,
			Policy:    pol,
		})
		return err
	}
	return fmt.Errorf("unknown store %q", a.Store)
}
