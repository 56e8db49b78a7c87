package variantcache

import (
	"context"
	"fmt"
	"time"

	"github.com/unkn0wn-root/variantcache/internal/util"
	"github.com/unkn0wn-root/variantcache/internal/wire"
	pr "github.com/unkn0wn-root/variantcache/provider"
	ts "github.com/unkn0wn-root/variantcache/tagstore"
)

// Entry is one output cache record. A pointer entry (PointerTag != "") never
// carries page output; it only says that the real content is partitioned by
// the named test.
type Entry struct {
	Content      []byte
	PointerTag   string
	Dependencies []string
}

// IsPointer reports whether e is a pointer entry.
func (e Entry) IsPointer() bool { return e.PointerTag != "" }

// EntryStore is the key-value store with dependency invalidation that the
// write and read paths run on. Keys are opaque.
type EntryStore interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry, ttl time.Duration) error
	// Invalidate makes every entry depending on any of tags unreadable.
	Invalidate(ctx context.Context, tags ...string) error
	Close(ctx context.Context) error
}

// SetCostFunc computes the provider cost of a stored entry.
type SetCostFunc func(storageKey string, raw []byte, pointer bool) int64

// taggedStore frames entries with the generation of each dependency tag at
// write time and rejects them on read once any of those tags moved.
//
// A write that snapshots before a concurrent bump stores the old generation
// and is rejected on its first read, so invalidation can't be lost to a race.
type taggedStore struct {
	ns         string
	provider   pr.Provider
	tags       ts.TagStore
	log        Logger
	hooks      Hooks
	defaultTTL time.Duration
	cost       SetCostFunc
}

func (s *taggedStore) storageKey(key string) string {
	return "out:" + s.ns + ":" + key
}

func (s *taggedStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	sk := s.storageKey(key)
	raw, ok, err := s.provider.Get(ctx, sk)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	we, err := wire.DecodeEntry(raw)
	if err != nil {
		_ = s.provider.Del(ctx, sk) // self-heal corrupt
		s.hooks.EntryDiscarded(sk, "corrupt")
		s.log.Debug("discarded corrupt entry", Fields{"key": key})
		return Entry{}, false, nil
	}
	valid, err := s.depsCurrent(ctx, we.Deps)
	if err != nil {
		// can't tell; miss without deleting, the entry may well be fine
		s.hooks.TagSnapshotError(len(we.Deps), err)
		s.log.Warn("tag snapshot error", Fields{"key": key, "err": err})
		return Entry{}, false, nil
	}
	if !valid {
		_ = s.provider.Del(ctx, sk)
		s.hooks.EntryDiscarded(sk, "dependency_changed")
		s.log.Debug("discarded invalidated entry", Fields{"key": key})
		return Entry{}, false, nil
	}

	e := Entry{Content: we.Content, PointerTag: we.PointerTag}
	if len(we.Deps) > 0 {
		e.Dependencies = make([]string, len(we.Deps))
		for i, d := range we.Deps {
			e.Dependencies[i] = d.Tag
		}
	}
	return e, true, nil
}

func (s *taggedStore) Set(ctx context.Context, key string, e Entry, ttl time.Duration) error {
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	deps := util.UniqSorted(e.Dependencies)
	gens, err := s.tags.SnapshotMany(ctx, deps)
	if err != nil {
		s.hooks.TagSnapshotError(len(deps), err)
		return fmt.Errorf("snapshot dependency tags: %w", err)
	}
	we := wire.Entry{PointerTag: e.PointerTag, Content: e.Content}
	if len(deps) > 0 {
		we.Deps = make([]wire.Dep, len(deps))
		for i, t := range deps {
			we.Deps[i] = wire.Dep{Tag: t, Gen: gens[t]}
		}
	}
	raw, err := wire.EncodeEntry(we)
	if err != nil {
		return err
	}

	sk := s.storageKey(key)
	ok, err := s.provider.Set(ctx, sk, raw, s.cost(sk, raw, e.IsPointer()), ttl)
	if err != nil {
		return err
	}
	if !ok {
		s.hooks.ProviderSetRejected(sk, e.IsPointer())
		s.log.Debug("Set rejected by provider (pressure)", Fields{"key": key})
	}
	return nil
}

// Invalidate bumps every tag, continuing past failures.
func (s *taggedStore) Invalidate(ctx context.Context, tags ...string) error {
	var failed []string
	var errs []error
	for _, t := range util.UniqSorted(tags) {
		g, err := s.tags.Bump(ctx, t)
		if err != nil {
			s.hooks.TagBumpError(t, err)
			s.log.Error("tag bump error", Fields{"tag": t, "err": err})
			failed = append(failed, t)
			errs = append(errs, err)
			continue
		}
		s.log.Debug("invalidated tag", Fields{"tag": t, "newGen": g})
	}
	if len(errs) > 0 {
		return &InvalidateError{Tags: failed, Errs: errs}
	}
	return nil
}

func (s *taggedStore) Close(ctx context.Context) error {
	// tag store first (best effort)
	_ = s.tags.Close(ctx)
	return s.provider.Close(ctx)
}

func (s *taggedStore) depsCurrent(ctx context.Context, deps []wire.Dep) (bool, error) {
	if len(deps) == 0 {
		return true, nil
	}
	tags := make([]string, len(deps))
	for i, d := range deps {
		tags[i] = d.Tag
	}
	cur, err := s.tags.SnapshotMany(ctx, tags)
	if err != nil {
		return false, err
	}
	for _, d := range deps {
		if cur[d.Tag] != d.Gen {
			return false, nil
		}
	}
	return true, nil
}
