package variantcache

import (
	"context"
	"fmt"
)

// Page is what Serve hands back to the host.
type Page struct {
	Content []byte
	Cached  bool
	Lookup  Result
}

// Serve runs one request through the cache: lookup, render on fallback,
// record the renderer's decision for the visitor if none is recorded yet, and
// store the output. A failed store is logged and does not fail the request,
// the rendered page is still served.
func (c *cache) Serve(ctx context.Context, req Request, r Renderer) (Page, error) {
	res, err := c.TryServeFromCache(ctx, req)
	if err != nil {
		return Page{Lookup: res}, err
	}
	if res.Outcome == Hit {
		return Page{Content: res.Content, Cached: true, Lookup: res}, nil
	}

	out, err := r.Render(ctx, req, res.Context)
	if err != nil {
		return Page{Lookup: res}, fmt.Errorf("render: %w", err)
	}
	if err := out.Test.validate(); err != nil {
		return Page{Lookup: res}, fmt.Errorf("render returned %w", err)
	}

	if out.Test.Active() {
		if err := recordDecision(ctx, req, out.Test); err != nil {
			return Page{Lookup: res}, err
		}
	}

	if err := c.StoreRenderedOutput(ctx, req, out.Content, out.Test, out.Dependencies); err != nil {
		c.log.Warn("store rendered output failed", Fields{"key": c.baseKey(req), "err": err})
	}
	return Page{Content: out.Content, Lookup: res}, nil
}

// recordDecision persists the renderer's variant or exclusion unless the
// visitor already has a sticky decision for the test.
func recordDecision(ctx context.Context, req Request, tc TestContext) error {
	if req.Assignments == nil {
		return &AssignmentError{Test: tc.Test.Name, Op: "get", Err: ErrNoAssignmentStore}
	}
	name := tc.Test.Name
	a, err := req.Assignments.Get(ctx, name)
	if err != nil {
		return &AssignmentError{Test: name, Op: "get", Err: err}
	}
	if a.Decided() {
		return nil
	}
	if tc.Excluded {
		if err := req.Assignments.SetExcluded(ctx, name); err != nil {
			return &AssignmentError{Test: name, Op: "set_excluded", Err: err}
		}
		return nil
	}
	if err := req.Assignments.SetVariant(ctx, name, tc.Variant); err != nil {
		return &AssignmentError{Test: name, Op: "set_variant", Err: err}
	}
	return nil
}
