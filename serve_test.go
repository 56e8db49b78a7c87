package variantcache

import (
	"context"
	"errors"
	"testing"
)

type countingRenderer struct {
	calls int
	fn    func(hint TestContext) (Rendered, error)
}

func (r *countingRenderer) Render(_ context.Context, _ Request, hint TestContext) (Rendered, error) {
	r.calls++
	return r.fn(hint)
}

func TestServeRendersOnceThenHits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	r := &countingRenderer{fn: func(TestContext) (Rendered, error) {
		return Rendered{Content: []byte("home"), Dependencies: []string{"node:1"}}, nil
	}}
	req := pageRequest("/", newFakeAssignments())

	p, err := f.oc.Serve(ctx, req, r)
	if err != nil || p.Cached || string(p.Content) != "home" {
		t.Fatalf("first serve: %+v err=%v", p, err)
	}
	p, err = f.oc.Serve(ctx, req, r)
	if err != nil || !p.Cached || string(p.Content) != "home" || p.Lookup.Reason != ReasonPlain {
		t.Fatalf("second serve: %+v err=%v", p, err)
	}
	if r.calls != 1 {
		t.Fatalf("renderer called %d times", r.calls)
	}
}

// The renderer runs the variant the lookup chose and hands the context back.
func TestServeRendersHintedVariant(t *testing.T) {
	ctx := context.Background()
	test := checkoutTest()
	f := newFixture(t, nil, test)
	storeVariant(t, f, pageRequest("/checkout", nil), test, "A", "A-page")

	r := &countingRenderer{fn: func(hint TestContext) (Rendered, error) {
		return Rendered{Content: []byte(hint.Variant + "-page"), Test: hint}, nil
	}}
	a := newFakeAssignments()
	req := pageRequest("/checkout", a)

	p, err := f.oc.Serve(ctx, req, r)
	if err != nil || string(p.Content) != "B-page" || p.Lookup.Reason != ReasonVariantMiss {
		t.Fatalf("first serve: %+v err=%v", p, err)
	}
	p, err = f.oc.Serve(ctx, req, r)
	if err != nil || !p.Cached || string(p.Content) != "B-page" {
		t.Fatalf("second serve: %+v err=%v", p, err)
	}
	if r.calls != 1 || f.selector.count() != 1 {
		t.Fatalf("renderer=%d selector=%d", r.calls, f.selector.count())
	}
}

// With no pointer cached yet, the lookup knows nothing; the renderer decides
// and Serve records that decision so later lookups agree with it.
func TestServeRecordsRendererDecision(t *testing.T) {
	ctx := context.Background()
	test := checkoutTest()
	f := newFixture(t, nil, test)
	r := &countingRenderer{fn: func(hint TestContext) (Rendered, error) {
		if hint.Active() {
			return Rendered{Content: []byte(hint.Variant + "-page"), Test: hint}, nil
		}
		return Rendered{Content: []byte("A-page"), Test: TestContext{Test: &test, Variant: "A"}}, nil
	}}
	a := newFakeAssignments()
	req := pageRequest("/checkout", a)

	if _, err := f.oc.Serve(ctx, req, r); err != nil {
		t.Fatal(err)
	}
	if got, _ := a.Get(ctx, test.Name); got.Variant != "A" {
		t.Fatalf("renderer decision not recorded: %+v", got)
	}
	p, err := f.oc.Serve(ctx, req, r)
	if err != nil || !p.Cached || string(p.Content) != "A-page" {
		t.Fatalf("second serve should hit the renderer's partition: %+v err=%v", p, err)
	}
	if f.selector.count() != 0 {
		t.Fatalf("selector should not run for a visitor the renderer decided")
	}
}

func TestServeDoesNotOverrideRecordedDecision(t *testing.T) {
	ctx := context.Background()
	test := checkoutTest()
	f := newFixture(t, nil, test)
	a := newFakeAssignments()
	a.seed(test.Name, Assignment{Excluded: true, Seen: true})
	r := &countingRenderer{fn: func(TestContext) (Rendered, error) {
		return Rendered{Content: []byte("A-page"), Test: TestContext{Test: &test, Variant: "A"}}, nil
	}}

	if _, err := f.oc.Serve(ctx, pageRequest("/checkout", a), r); err != nil {
		t.Fatal(err)
	}
	if got, _ := a.Get(ctx, test.Name); !got.Excluded || got.Variant != "" {
		t.Fatalf("recorded exclusion was overwritten: %+v", got)
	}
	if a.setCount() != 0 {
		t.Fatalf("Serve wrote to a decided visitor's store")
	}
}

func TestServeErrors(t *testing.T) {
	ctx := context.Background()
	test := checkoutTest()

	t.Run("render", func(t *testing.T) {
		f := newFixture(t, nil)
		renderErr := errors.New("template panic")
		r := &countingRenderer{fn: func(TestContext) (Rendered, error) { return Rendered{}, renderErr }}
		if _, err := f.oc.Serve(ctx, pageRequest("/", nil), r); !errors.Is(err, renderErr) {
			t.Fatalf("expected render error, got %v", err)
		}
		if len(f.mp.snapshot()) != 0 {
			t.Fatalf("failed render stored output")
		}
	})

	t.Run("invalid context", func(t *testing.T) {
		f := newFixture(t, nil, test)
		r := &countingRenderer{fn: func(TestContext) (Rendered, error) {
			return Rendered{Content: []byte("x"), Test: TestContext{Test: &test}}, nil
		}}
		if _, err := f.oc.Serve(ctx, pageRequest("/checkout", newFakeAssignments()), r); !errors.Is(err, ErrInvalidTestContext) {
			t.Fatalf("expected ErrInvalidTestContext, got %v", err)
		}
	})

	t.Run("store failure still serves", func(t *testing.T) {
		mp := &errProvider{memProvider: newMemProvider(), setErr: errors.New("full")}
		f := newFixture(t, func(o *Options) { o.Provider = mp })
		r := &countingRenderer{fn: func(TestContext) (Rendered, error) {
			return Rendered{Content: []byte("home")}, nil
		}}
		p, err := f.oc.Serve(ctx, pageRequest("/", nil), r)
		if err != nil || string(p.Content) != "home" {
			t.Fatalf("got %+v err=%v", p, err)
		}
	})
}
