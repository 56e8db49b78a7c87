// Package registry is an in-memory split test registry.
//
// Hosts that keep test definitions elsewhere implement variantcache.Registry
// directly; this one suits tests, demos and hosts that load definitions at
// startup. Mutations report the dependency tags to invalidate through an
// optional callback so cached pages follow definition changes.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	vc "github.com/unkn0wn-root/variantcache"
)

var ErrInvalidTest = errors.New("registry: invalid test")

// Invalidator is the part of variantcache.OutputCache the registry drives.
type Invalidator interface {
	InvalidateTest(ctx context.Context, kind vc.Kind, site, name string) error
	InvalidateVariants(ctx context.Context, kind vc.Kind) error
}

type key struct {
	kind vc.Kind
	site string
	name string
}

// Memory holds tests keyed by (kind, site, name).
type Memory struct {
	mu    sync.RWMutex
	tests map[key]vc.Test
	inv   Invalidator
}

var _ vc.Registry = (*Memory)(nil)

// NewMemory returns an empty registry. inv may be nil.
func NewMemory(inv Invalidator) *Memory {
	return &Memory{tests: make(map[key]vc.Test), inv: inv}
}

func (m *Memory) GetByName(_ context.Context, kind vc.Kind, name, site string) (vc.Test, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tests[key{kind, site, name}]
	return t, ok, nil
}

// Put adds or replaces t. Replacing a test invalidates its pages; a change
// of the variant set invalidates every page of the kind.
func (m *Memory) Put(ctx context.Context, t vc.Test) error {
	if !t.Kind.Valid() || t.Name == "" {
		return fmt.Errorf("%w: kind=%v name=%q", ErrInvalidTest, t.Kind, t.Name)
	}
	t.Variants = append([]vc.Variant(nil), t.Variants...)

	k := key{t.Kind, t.Site, t.Name}
	m.mu.Lock()
	prev, existed := m.tests[k]
	m.tests[k] = t
	m.mu.Unlock()

	if !existed || m.inv == nil {
		return nil
	}
	if !sameVariants(prev.Variants, t.Variants) {
		if err := m.inv.InvalidateVariants(ctx, t.Kind); err != nil {
			return err
		}
	}
	return m.inv.InvalidateTest(ctx, t.Kind, t.Site, t.Name)
}

// SetStatus changes the lifecycle state of a stored test.
func (m *Memory) SetStatus(ctx context.Context, kind vc.Kind, site, name string, s vc.Status) error {
	k := key{kind, site, name}
	m.mu.Lock()
	t, ok := m.tests[k]
	if ok {
		t.Status = s
		m.tests[k] = t
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("registry: test %s not found", vc.PointerTag(kind, name))
	}
	if m.inv == nil {
		return nil
	}
	return m.inv.InvalidateTest(ctx, kind, site, name)
}

// Delete removes a test and invalidates its pages.
func (m *Memory) Delete(ctx context.Context, kind vc.Kind, site, name string) error {
	m.mu.Lock()
	_, ok := m.tests[key{kind, site, name}]
	delete(m.tests, key{kind, site, name})
	m.mu.Unlock()
	if !ok || m.inv == nil {
		return nil
	}
	return m.inv.InvalidateTest(ctx, kind, site, name)
}

// List returns the tests of site sorted by kind then name.
func (m *Memory) List(site string) []vc.Test {
	m.mu.RLock()
	out := make([]vc.Test, 0, len(m.tests))
	for k, t := range m.tests {
		if k.site == site {
			out = append(out, t)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func sameVariants(a, b []vc.Variant) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, v := range a {
		seen[v.Name]++
	}
	for _, v := range b {
		seen[v.Name]--
		if seen[v.Name] < 0 {
			return false
		}
	}
	return true
}
