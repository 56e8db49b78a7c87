package variantcache

import (
	"context"
	"time"

	pr "github.com/unkn0wn-root/variantcache/provider"
	ts "github.com/unkn0wn-root/variantcache/tagstore"
)

// OutputCache is a rendered-output cache that partitions pages taking part in
// a split test by variant, while plain pages keep a single entry.
type OutputCache interface {
	Enabled() bool
	Close(context.Context) error

	// TryServeFromCache resolves req to cached content or Fallback.
	// A non-nil error is returned only for assignment store failures.
	TryServeFromCache(ctx context.Context, req Request) (Result, error)

	// StoreRenderedOutput writes content rendered for req under tc.
	// A zero tc stores a plain entry.
	StoreRenderedOutput(ctx context.Context, req Request, content []byte, tc TestContext, deps []string) error

	// Serve combines both paths around r: lookup, render on fallback, store.
	Serve(ctx context.Context, req Request, r Renderer) (Page, error)

	// Invalidation by dependency tag.
	Invalidate(ctx context.Context, tags ...string) error
	InvalidateTest(ctx context.Context, kind Kind, site, name string) error
	InvalidateVariants(ctx context.Context, kind Kind) error
}

// PointerPolicy decides what a lookup returns when a base entry carries a
// pointer tag with an unknown kind prefix.
type PointerPolicy uint8

const (
	// ServePointerContent returns the pointer entry's own content as a hit.
	ServePointerContent PointerPolicy = iota
	// FallbackOnUnrecognizedPointer forces a fresh render instead.
	FallbackOnUnrecognizedPointer
)

// DefaultSettingTag is the dependency tag standing for the global settings
// that control assignment mechanics (cookie names, lifetimes, ...).
const DefaultSettingTag = "setting:splittest.assignment"

// Options tune the output cache.
// Namespace, Provider, Registry and Selector are required; the rest default.
type Options struct {
	// Required
	Namespace string // isolates keys, e.g. "site:prod:pages"
	Provider  pr.Provider
	Registry  Registry
	Selector  Selector

	Logger          Logger        // nil => NopLogger
	Hooks           Hooks         // nil => NopHooks
	TagStore        ts.TagStore   // nil => tagstore.Local
	KeyFunc         KeyFunc       // nil => DefaultKey
	DefaultTTL      time.Duration // 0 => 10m
	CleanupInterval time.Duration // local tag sweep; 0 => 1h
	TagRetention    time.Duration // local tag retention; 0 => 30d
	ComputeSetCost  SetCostFunc   // nil => 1
	SettingTags     []string      // nil => [DefaultSettingTag]
	Disabled        bool

	UnrecognizedPointer PointerPolicy
}

func New(opts Options) (OutputCache, error) {
	return newCache(opts)
}
