package registry

import (
	"context"
	"errors"
	"testing"

	vc "github.com/unkn0wn-root/variantcache"
)

type recordingInvalidator struct {
	tests    []string
	variants []vc.Kind
	err      error
}

func (r *recordingInvalidator) InvalidateTest(_ context.Context, kind vc.Kind, site, name string) error {
	r.tests = append(r.tests, vc.TestTag(kind, site, name))
	return r.err
}

func (r *recordingInvalidator) InvalidateVariants(_ context.Context, kind vc.Kind) error {
	r.variants = append(r.variants, kind)
	return r.err
}

func abTest(site, name string, variants ...string) vc.Test {
	t := vc.Test{Kind: vc.KindAB, Name: name, Site: site, Status: vc.StatusRunning}
	for _, v := range variants {
		t.Variants = append(t.Variants, vc.Variant{Name: v})
	}
	return t
}

func TestGetByNameIsSiteScoped(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	if err := m.Put(ctx, abTest("shop", "t", "A", "B")); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := m.GetByName(ctx, vc.KindAB, "t", "shop"); !ok {
		t.Fatalf("test not found on its site")
	}
	if _, ok, _ := m.GetByName(ctx, vc.KindAB, "t", "blog"); ok {
		t.Fatalf("test leaked to another site")
	}
	if _, ok, _ := m.GetByName(ctx, vc.KindMVT, "t", "shop"); ok {
		t.Fatalf("kinds must not share names")
	}
}

func TestPutValidates(t *testing.T) {
	m := NewMemory(nil)
	for _, bad := range []vc.Test{{Name: "t"}, {Kind: vc.KindAB}} {
		if err := m.Put(context.Background(), bad); !errors.Is(err, ErrInvalidTest) {
			t.Fatalf("Put(%+v) = %v", bad, err)
		}
	}
}

func TestMutationsInvalidate(t *testing.T) {
	ctx := context.Background()
	inv := &recordingInvalidator{}
	m := NewMemory(inv)
	tag := vc.TestTag(vc.KindAB, "shop", "t")

	_ = m.Put(ctx, abTest("shop", "t", "A", "B"))
	if len(inv.tests)+len(inv.variants) != 0 {
		t.Fatalf("first Put has nothing cached to invalidate")
	}

	_ = m.Put(ctx, abTest("shop", "t", "B", "A"))
	if len(inv.tests) != 1 || inv.tests[0] != tag || len(inv.variants) != 0 {
		t.Fatalf("edit without variant change: tests=%v variants=%v", inv.tests, inv.variants)
	}

	_ = m.Put(ctx, abTest("shop", "t", "A", "B", "C"))
	if len(inv.variants) != 1 || inv.variants[0] != vc.KindAB {
		t.Fatalf("variant change should invalidate the kind: %v", inv.variants)
	}

	if err := m.SetStatus(ctx, vc.KindAB, "shop", "t", vc.StatusFinished); err != nil {
		t.Fatal(err)
	}
	if got, _, _ := m.GetByName(ctx, vc.KindAB, "t", "shop"); got.Status != vc.StatusFinished {
		t.Fatalf("status not updated")
	}
	if err := m.SetStatus(ctx, vc.KindAB, "shop", "missing", vc.StatusRunning); err == nil {
		t.Fatalf("expected not found error")
	}

	_ = m.Delete(ctx, vc.KindAB, "shop", "t")
	if _, ok, _ := m.GetByName(ctx, vc.KindAB, "t", "shop"); ok {
		t.Fatalf("Delete kept the test")
	}
	if n := len(inv.tests); n != 4 {
		t.Fatalf("expected 4 test invalidations, got %d", n)
	}
}

func TestInvalidationErrorIsReturned(t *testing.T) {
	ctx := context.Background()
	inv := &recordingInvalidator{}
	m := NewMemory(inv)
	_ = m.Put(ctx, abTest("shop", "t", "A"))
	inv.err = errors.New("tag store down")
	if err := m.Delete(ctx, vc.KindAB, "shop", "t"); !errors.Is(err, inv.err) {
		t.Fatalf("got %v", err)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	_ = m.Put(ctx, abTest("shop", "b", "A"))
	_ = m.Put(ctx, abTest("shop", "a", "A"))
	_ = m.Put(ctx, abTest("blog", "c", "A"))
	got := m.List("shop")
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Fatalf("got %+v", got)
	}
}

func TestUniformSelector(t *testing.T) {
	ctx := context.Background()
	s := NewUniform(42)
	test := abTest("shop", "t", "A", "B")

	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		v, ok, err := s.Choose(ctx, test)
		if err != nil || !ok {
			t.Fatalf("Choose: ok=%v err=%v", ok, err)
		}
		counts[v.Name]++
	}
	if counts["A"] < 350 || counts["B"] < 350 {
		t.Fatalf("skewed distribution %v", counts)
	}

	test.Status = vc.StatusFinished
	if _, ok, _ := s.Choose(ctx, test); ok {
		t.Fatalf("finished test should yield no variant")
	}
	if _, ok, _ := s.Choose(ctx, abTest("shop", "empty")); ok {
		t.Fatalf("test without variants should yield no variant")
	}
}
