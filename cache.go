package variantcache

import (
	"context"
	"fmt"
	"time"

	ts "github.com/unkn0wn-root/variantcache/tagstore"
)

const (
	defaultTTL          = 10 * time.Minute
	defaultTagRetention = 30 * 24 * time.Hour
	defaultSweep        = time.Hour
)

type cache struct {
	store         EntryStore
	registry      Registry
	selector      Selector
	log           Logger
	hooks         Hooks
	keyFunc       KeyFunc
	settingTags   []string
	pointerPolicy PointerPolicy
	enabled       bool
}

func newCache(opts Options) (*cache, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("variantcache: provider is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("variantcache: registry is required")
	}
	if opts.Selector == nil {
		return nil, fmt.Errorf("variantcache: selector is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("variantcache: namespace is required")
	}
	if opts.UnrecognizedPointer > FallbackOnUnrecognizedPointer {
		return nil, fmt.Errorf("variantcache: unknown pointer policy %d", opts.UnrecognizedPointer)
	}
	ttl := coalesce[time.Duration](opts.DefaultTTL, defaultTTL)
	retention := coalesce[time.Duration](opts.TagRetention, defaultTagRetention)
	// a forgotten tag reads as generation 0, which would revalidate entries
	// still alive from before it was pruned
	if opts.TagStore == nil && retention <= ttl {
		return nil, fmt.Errorf("variantcache: tag retention %v must exceed default ttl %v", retention, ttl)
	}

	c := &cache{
		registry:      opts.Registry,
		selector:      opts.Selector,
		keyFunc:       opts.KeyFunc,
		pointerPolicy: opts.UnrecognizedPointer,
		enabled:       !opts.Disabled,
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	if opts.SettingTags != nil {
		c.settingTags = append([]string(nil), opts.SettingTags...)
	} else {
		c.settingTags = []string{DefaultSettingTag}
	}

	s := &taggedStore{
		ns:         opts.Namespace,
		provider:   opts.Provider,
		log:        c.log,
		hooks:      c.hooks,
		defaultTTL: ttl,
		cost:       opts.ComputeSetCost,
	}
	if s.cost == nil {
		s.cost = func(string, []byte, bool) int64 { return 1 }
	}
	if opts.TagStore != nil {
		s.tags = opts.TagStore
	} else {
		s.tags = ts.NewLocal(
			coalesce[time.Duration](opts.CleanupInterval, defaultSweep),
			retention,
		)
	}
	c.store = s

	return c, nil
}

func (c *cache) Enabled() bool { return c.enabled }

func (c *cache) Close(ctx context.Context) error { return c.store.Close(ctx) }

func (c *cache) baseKey(req Request) string { return BaseKey(req, c.keyFunc) }

func (c *cache) Invalidate(ctx context.Context, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	return c.store.Invalidate(ctx, tags...)
}

// InvalidateTest drops every page partitioned by the test; call it when the
// test is edited or deleted.
func (c *cache) InvalidateTest(ctx context.Context, kind Kind, site, name string) error {
	return c.Invalidate(ctx, TestTag(kind, site, name))
}

// InvalidateVariants drops every partitioned page of kind; call it when any
// variant of that kind is added or removed.
func (c *cache) InvalidateVariants(ctx context.Context, kind Kind) error {
	return c.Invalidate(ctx, AllVariantsTag(kind))
}
