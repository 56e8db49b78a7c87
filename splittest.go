package variantcache

import (
	"context"
	"net/url"
)

// Kind is the split test family a test belongs to.
type Kind uint8

const (
	KindAB  Kind = iota + 1 // A/B test: whole-page variants
	KindMVT                 // multivariate test: combinations of zone variants
)

// String returns the pointer tag prefix of k ("AB", "MVT").
func (k Kind) String() string {
	switch k {
	case KindAB:
		return "AB"
	case KindMVT:
		return "MVT"
	default:
		return "unknown"
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k == KindAB || k == KindMVT }

// Status is the lifecycle state of a test.
type Status uint8

const (
	StatusDraft Status = iota
	StatusRunning
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Visitor is the targeting context of the current visitor, supplied by the host
// (geo, device, segment, ...). It is opaque to the cache.
type Visitor struct {
	Attributes map[string]string
}

// Rule is a targeting predicate. An error is treated exactly like a failed match.
type Rule interface {
	Match(ctx context.Context, v Visitor) (bool, error)
}

// RuleFunc adapts a function to Rule.
type RuleFunc func(ctx context.Context, v Visitor) (bool, error)

func (f RuleFunc) Match(ctx context.Context, v Visitor) (bool, error) { return f(ctx, v) }

// Variant is one named content alternative of a test.
type Variant struct {
	Name string
}

// Test is a split test definition as seen by the cache. Identity is (Kind, Name, Site).
type Test struct {
	Kind     Kind
	Name     string
	Site     string
	Status   Status
	Rule     Rule // nil => no targeting
	Variants []Variant
}

// Targeted reports whether the test carries a targeting rule.
func (t Test) Targeted() bool { return t.Rule != nil }

// Registry resolves test definitions. Owned by the authoring subsystem.
type Registry interface {
	// GetByName returns (test, true, nil) when found and (Test{}, false, nil) when not.
	GetByName(ctx context.Context, kind Kind, name, site string) (Test, bool, error)
}

// Selector picks a variant for a visitor entering a running test.
// ok=false means "no variant" (test not running or has no variants).
type Selector interface {
	Choose(ctx context.Context, t Test) (v Variant, ok bool, err error)
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(ctx context.Context, t Test) (Variant, bool, error)

func (f SelectorFunc) Choose(ctx context.Context, t Test) (Variant, bool, error) { return f(ctx, t) }

// Assignment is a visitor's recorded decision for one test.
// Seen is true whenever any record exists, even one without a decision.
type Assignment struct {
	Variant  string
	Excluded bool
	Seen     bool
}

// Decided reports whether a sticky decision (variant or exclusion) exists.
func (a Assignment) Decided() bool { return a.Excluded || a.Variant != "" }

// AssignmentStore reads and writes sticky decisions in one visitor's scope
// (cookie jar, session). Implementations live in package assignment.
//
// Once a variant or exclusion is recorded it must not be replaced by a later
// decision for the lifetime of the scope. Whether concurrent first writers
// resolve first-wins or last-wins is the store's contract, not the cache's.
type AssignmentStore interface {
	Get(ctx context.Context, test string) (Assignment, error)
	SetVariant(ctx context.Context, test, variant string) error
	SetExcluded(ctx context.Context, test string) error
}

// Request identifies a page request. Query is copied into the base key in
// sorted order; Variation distinguishes otherwise identical URLs (culture,
// device profile) exactly like the host's plain output cache does.
type Request struct {
	Site      string
	Path      string
	Query     url.Values
	Variation string

	Visitor     Visitor
	Assignments AssignmentStore
}

// TestContext is the split test a render participated in: none (zero value),
// (Test, Variant) or (Test, excluded). It is passed to and returned from the
// renderer explicitly rather than kept in request-global state.
type TestContext struct {
	Test     *Test
	Variant  string
	Excluded bool
}

// Active reports whether the context names a test.
func (tc TestContext) Active() bool { return tc.Test != nil }

func (tc TestContext) validate() error {
	if tc.Test == nil {
		return nil
	}
	if !tc.Test.Kind.Valid() || tc.Test.Name == "" {
		return ErrInvalidTestContext
	}
	if tc.Excluded == (tc.Variant != "") {
		return ErrInvalidTestContext
	}
	return nil
}

// suffix returns the variant key suffix for a valid, active context.
func (tc TestContext) suffix() Suffix {
	if tc.Excluded {
		return ExcludedSuffix
	}
	return VariantSuffix(tc.Variant)
}

// Rendered is a renderer's output together with the test context it used.
type Rendered struct {
	Content      []byte
	Test         TestContext
	Dependencies []string
}

// Renderer produces page output. hint carries whatever the cache already
// resolved (test and variant or exclusion); a zero hint means nothing is known.
type Renderer interface {
	Render(ctx context.Context, req Request, hint TestContext) (Rendered, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, req Request, hint TestContext) (Rendered, error)

func (f RendererFunc) Render(ctx context.Context, req Request, hint TestContext) (Rendered, error) {
	return f(ctx, req, hint)
}
