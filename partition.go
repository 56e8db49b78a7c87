package variantcache

import (
	"context"

	"github.com/unkn0wn-root/variantcache/internal/util"
)

// StoreRenderedOutput is the write path.
//
// Without a test context the content goes under the base key with the
// caller's dependencies. With one, the base key gets a pointer entry naming
// the test and the content goes under the variant key of the visitor's
// partition. Both entries depend on the test, on every variant of its kind and
// on the assignment settings; the variant entry also depends on its variant.
//
// The two writes are independent. A reader may see the pointer before the
// variant entry exists; it falls back and the next render fills the gap.
// Writing the same inputs twice stores identical bytes under identical keys.
func (c *cache) StoreRenderedOutput(ctx context.Context, req Request, content []byte, tc TestContext, deps []string) error {
	if !c.enabled {
		return nil
	}
	if err := tc.validate(); err != nil {
		return err
	}
	base := c.baseKey(req)

	if !tc.Active() {
		return c.store.Set(ctx, base, Entry{Content: content, Dependencies: deps}, 0)
	}

	t := tc.Test
	shared := make([]string, 0, len(deps)+len(c.settingTags)+3)
	shared = append(shared, AllVariantsTag(t.Kind), TestTag(t.Kind, t.Site, t.Name))
	shared = append(shared, c.settingTags...)
	shared = append(shared, deps...)
	shared = util.UniqSorted(shared)

	variantDeps := shared
	if !tc.Excluded {
		variantDeps = util.UniqSorted(append(append([]string(nil), shared...), VariantTag(t.Kind, t.Site, t.Name, tc.Variant)))
	}

	var werr WriteError
	werr.BaseKey = base
	werr.PointerErr = c.store.Set(ctx, base, Entry{
		PointerTag:   PointerTag(t.Kind, t.Name),
		Dependencies: shared,
	}, 0)

	vk := VariantKey(base, t.Kind, t.Name, tc.suffix())
	werr.VariantErr = c.store.Set(ctx, vk, Entry{Content: content, Dependencies: variantDeps}, 0)

	if werr.PointerErr != nil || werr.VariantErr != nil {
		c.log.Warn("partitioned write failed", Fields{
			"key": base, "test": t.Name, "pointerErr": werr.PointerErr, "variantErr": werr.VariantErr,
		})
		return &werr
	}
	c.log.Debug("stored partitioned output", Fields{"key": base, "test": t.Name, "partition": tc.suffix().String()})
	return nil
}
