package registry_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	vc "github.com/unkn0wn-root/variantcache"
	"github.com/unkn0wn-root/variantcache/assignment"
	"github.com/unkn0wn-root/variantcache/provider/ristretto"
	"github.com/unkn0wn-root/variantcache/registry"
)

type lazyInvalidator struct{ oc vc.OutputCache }

func (l *lazyInvalidator) InvalidateTest(ctx context.Context, k vc.Kind, site, name string) error {
	return l.oc.InvalidateTest(ctx, k, site, name)
}

func (l *lazyInvalidator) InvalidateVariants(ctx context.Context, k vc.Kind) error {
	return l.oc.InvalidateVariants(ctx, k)
}

// Full stack: ristretto provider, local tag store, cookie assignments.
func TestCookieVisitorsGetStickyVariants(t *testing.T) {
	ctx := context.Background()
	p, err := ristretto.New(ristretto.Config{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64})
	if err != nil {
		t.Fatal(err)
	}
	inv := &lazyInvalidator{}
	reg := registry.NewMemory(inv)
	oc, err := vc.New(vc.Options{
		Namespace: "e2e",
		Provider:  p,
		Registry:  reg,
		Selector:  registry.NewUniform(7),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = oc.Close(ctx) })
	inv.oc = oc

	test := vc.Test{Kind: vc.KindAB, Name: "hero", Site: "shop", Status: vc.StatusRunning,
		Variants: []vc.Variant{{Name: "A"}, {Name: "B"}}}
	if err := reg.Put(ctx, test); err != nil {
		t.Fatal(err)
	}
	jar, err := assignment.NewCookieJar(assignment.CookieOptions{})
	if err != nil {
		t.Fatal(err)
	}

	renders := 0
	render := vc.RendererFunc(func(_ context.Context, _ vc.Request, hint vc.TestContext) (vc.Rendered, error) {
		renders++
		tc := hint
		if !tc.Active() {
			tc = vc.TestContext{Test: &test, Variant: "A"}
		}
		if tc.Variant == "" && !tc.Excluded {
			tc.Variant = "A"
		}
		return vc.Rendered{Content: []byte("hero-" + tc.Variant), Test: tc}, nil
	})

	// serve runs one request of the visitor holding cookies and returns
	// the cookies to send next time.
	serve := func(cookies []*http.Cookie) (string, bool, []*http.Cookie) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, c := range cookies {
			r.AddCookie(c)
		}
		w := httptest.NewRecorder()
		req := vc.Request{Site: "shop", Path: "/", Assignments: jar.For(w, r)}
		page, err := oc.Serve(ctx, req, render)
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
		return string(page.Content), page.Cached, append(cookies, w.Result().Cookies()...)
	}

	first, _, alice := serve(nil)
	for i := 0; i < 5; i++ {
		again, _, _ := serve(alice)
		if again != first {
			t.Fatalf("visitor flipped from %q to %q", first, again)
		}
	}
	if _, cached, _ := serve(alice); !cached {
		t.Fatalf("repeat visit should be served from cache")
	}

	// editing the test drops the partitioned page; the visitor keeps the variant
	before := renders
	test.Variants = append(test.Variants, vc.Variant{Name: "C"})
	if err := reg.Put(ctx, test); err != nil {
		t.Fatal(err)
	}
	after, cached, _ := serve(alice)
	if cached || renders != before+1 || after != first {
		t.Fatalf("after edit: content=%q cached=%v renders=%d", after, cached, renders-before)
	}
}
