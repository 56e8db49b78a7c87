// Package variantcache is a rendered-output cache that understands split tests
// (A/B and multivariate). Pages outside any test keep one cache entry per URL;
// pages taking part in a test are partitioned so each variant, and the group
// of excluded visitors, is cached independently.
//
// Components:
//   - Provider: byte store with TTL (Ristretto, BigCache, Redis).
//   - TagStore: generation counter per dependency tag. Entries record the
//     generations of their tags at write time and are rejected on read after
//     any of them is bumped. Local by default, Redis for multi-replica setups.
//   - Registry, Selector: test definitions and variant choice (host supplied).
//   - AssignmentStore: a visitor's sticky variant/exclusion per test (package assignment).
//
// Keys:
//
//	page:<host key>                        plain entry, or pointer entry "AB:<test>"
//	variant:<n>:<base>|AB|<n>:<test>|v:B   content of variant B
//	variant:<n>:<base>|AB|<n>:<test>|x     content for excluded visitors
//
// Flow:
//
//	res, err := oc.TryServeFromCache(ctx, req)
//	if res.Outcome == variantcache.Fallback {
//	    out, _ := render(ctx, req, res.Context)
//	    _ = oc.StoreRenderedOutput(ctx, req, out.Content, out.Test, out.Dependencies)
//	}
//
// OutputCache.Serve does exactly that around a Renderer.
package variantcache
