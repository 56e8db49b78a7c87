package variantcache

import "context"

// Outcome of a lookup.
type Outcome uint8

const (
	Fallback Outcome = iota // render fresh, then StoreRenderedOutput
	Hit                     // serve Result.Content
)

func (o Outcome) String() string {
	if o == Hit {
		return "hit"
	}
	return "fallback"
}

// Reason explains how a lookup reached its outcome.
type Reason uint8

const (
	ReasonDisabled            Reason = iota // cache disabled
	ReasonMiss                              // no base entry
	ReasonStoreError                        // entry store read failed
	ReasonPlain                             // plain (non-test) entry
	ReasonUnrecognizedPointer               // pointer tag with unknown kind prefix
	ReasonStalePointer                      // pointer names a test that no longer exists
	ReasonRegistryError                     // test registry lookup failed
	ReasonTargetingPending                  // targeted test, visitor never seen
	ReasonNotRunning                        // undecided visitor, test not running
	ReasonSelectorError                     // variant selector failed
	ReasonExcluded                          // visitor excluded by this lookup
	ReasonVariantMiss                       // partition not cached yet
	ReasonVariantHit                        // partition served
	ReasonAssignmentError                   // assignment store failed (fatal)
)

var reasonNames = [...]string{
	ReasonDisabled:            "disabled",
	ReasonMiss:                "miss",
	ReasonStoreError:          "store_error",
	ReasonPlain:               "plain",
	ReasonUnrecognizedPointer: "unrecognized_pointer",
	ReasonStalePointer:        "stale_pointer",
	ReasonRegistryError:       "registry_error",
	ReasonTargetingPending:    "targeting_pending",
	ReasonNotRunning:          "not_running",
	ReasonSelectorError:       "selector_error",
	ReasonExcluded:            "excluded",
	ReasonVariantMiss:         "variant_miss",
	ReasonVariantHit:          "variant_hit",
	ReasonAssignmentError:     "assignment_error",
}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// Result of TryServeFromCache. It is never persisted.
//
// Context is what the lookup learned about the visitor: the test and, when a
// decision exists, the variant or exclusion. Pass it to the renderer on
// Fallback. Context.Test is set without a decision when the visitor is still
// undecided (targeting pending, test not running, selector failure).
type Result struct {
	Outcome Outcome
	Reason  Reason
	Content []byte
	Context TestContext
}

func hit(content []byte, r Reason, tc TestContext) Result {
	return Result{Outcome: Hit, Reason: r, Content: content, Context: tc}
}

func fallback(r Reason, tc TestContext) Result {
	return Result{Outcome: Fallback, Reason: r, Context: tc}
}

// TryServeFromCache is the read path.
func (c *cache) TryServeFromCache(ctx context.Context, req Request) (Result, error) {
	res, err := c.resolve(ctx, req)
	if err != nil {
		c.log.Error("assignment store failure", Fields{"err": err})
	} else if res.Outcome == Fallback {
		c.log.Debug("cache fallback", Fields{"path": req.Path, "reason": res.Reason.String()})
	}
	c.hooks.LookupResolved(res.Outcome, res.Reason)
	return res, err
}

func (c *cache) resolve(ctx context.Context, req Request) (Result, error) {
	if !c.enabled {
		return fallback(ReasonDisabled, TestContext{}), nil
	}

	// base key
	base := c.baseKey(req)
	e, ok, err := c.store.Get(ctx, base)
	if err != nil {
		c.log.Warn("base entry read failed", Fields{"key": base, "err": err})
		return fallback(ReasonStoreError, TestContext{}), nil
	}
	if !ok {
		return fallback(ReasonMiss, TestContext{}), nil
	}
	if !e.IsPointer() {
		return hit(e.Content, ReasonPlain, TestContext{}), nil
	}

	// pointer
	kind, name, ok := ParsePointerTag(e.PointerTag)
	if !ok {
		c.hooks.UnrecognizedPointer(base, e.PointerTag)
		c.log.Warn("unrecognized pointer tag", Fields{"key": base, "tag": e.PointerTag})
		if c.pointerPolicy == FallbackOnUnrecognizedPointer {
			return fallback(ReasonUnrecognizedPointer, TestContext{}), nil
		}
		return hit(e.Content, ReasonUnrecognizedPointer, TestContext{}), nil
	}

	// test
	test, found, err := c.registry.GetByName(ctx, kind, name, req.Site)
	if err != nil {
		c.log.Warn("test registry lookup failed", Fields{"test": name, "err": err})
		return fallback(ReasonRegistryError, TestContext{}), nil
	}
	if !found {
		c.log.Debug("pointer to missing test", Fields{"key": base, "test": name})
		return fallback(ReasonStalePointer, TestContext{}), nil
	}
	test.Kind, test.Name = kind, name
	tc := TestContext{Test: &test}

	// visitor
	if req.Assignments == nil {
		return fallback(ReasonAssignmentError, tc), &AssignmentError{Test: name, Op: "get", Err: ErrNoAssignmentStore}
	}
	a, err := req.Assignments.Get(ctx, name)
	if err != nil {
		return fallback(ReasonAssignmentError, tc), &AssignmentError{Test: name, Op: "get", Err: err}
	}
	if !a.Decided() {
		if res, done, err := c.decide(ctx, req, &tc, a); done || err != nil {
			return res, err
		}
	} else {
		tc.Variant, tc.Excluded = a.Variant, a.Excluded
		if tc.Excluded {
			tc.Variant = ""
		}
	}

	// partition
	vk := VariantKey(base, kind, name, tc.suffix())
	ve, ok, err := c.store.Get(ctx, vk)
	if err != nil {
		c.log.Warn("variant entry read failed", Fields{"key": vk, "err": err})
		return fallback(ReasonStoreError, tc), nil
	}
	if !ok || ve.IsPointer() {
		return fallback(ReasonVariantMiss, tc), nil
	}
	return hit(ve.Content, ReasonVariantHit, tc), nil
}

// decide handles a visitor with no sticky decision. done=true means res is
// final; otherwise tc now carries a variant and the partition lookup proceeds.
func (c *cache) decide(ctx context.Context, req Request, tc *TestContext, a Assignment) (res Result, done bool, err error) {
	test := tc.Test
	undecided := TestContext{Test: test}

	// A targeted test needs one real render before anything is decided for a
	// brand-new visitor, so targeting runs with the full page context.
	if test.Targeted() && !a.Seen {
		return fallback(ReasonTargetingPending, undecided), true, nil
	}
	if test.Status != StatusRunning {
		return fallback(ReasonNotRunning, undecided), true, nil
	}

	v, ok, err := c.selector.Choose(ctx, *test)
	if err != nil {
		c.log.Warn("variant selection failed", Fields{"test": test.Name, "err": err})
		return fallback(ReasonSelectorError, undecided), true, nil
	}

	if ok && v.Name != "" && c.targetingAllows(ctx, req, *test) {
		if err := req.Assignments.SetVariant(ctx, test.Name, v.Name); err != nil {
			return fallback(ReasonAssignmentError, undecided), true, &AssignmentError{Test: test.Name, Op: "set_variant", Err: err}
		}
		c.hooks.AssignmentPersisted(test.Name, false)

		// read back: with a first-write-wins store a concurrent request may
		// already have decided for this visitor
		got, err := req.Assignments.Get(ctx, test.Name)
		if err != nil {
			return fallback(ReasonAssignmentError, undecided), true, &AssignmentError{Test: test.Name, Op: "get", Err: err}
		}
		switch {
		case got.Excluded:
			tc.Excluded = true
		case got.Variant != "":
			tc.Variant = got.Variant
		default:
			tc.Variant = v.Name
		}
		return Result{}, false, nil
	}

	if err := req.Assignments.SetExcluded(ctx, test.Name); err != nil {
		return fallback(ReasonAssignmentError, undecided), true, &AssignmentError{Test: test.Name, Op: "set_excluded", Err: err}
	}
	c.hooks.AssignmentPersisted(test.Name, true)
	return fallback(ReasonExcluded, TestContext{Test: test, Excluded: true}), true, nil
}

func (c *cache) targetingAllows(ctx context.Context, req Request, t Test) bool {
	if t.Rule == nil {
		return true
	}
	ok, err := t.Rule.Match(ctx, req.Visitor)
	if err != nil {
		c.log.Warn("targeting rule failed", Fields{"test": t.Name, "err": err})
		return false
	}
	return ok
}
