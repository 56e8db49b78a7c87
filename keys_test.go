package variantcache

import (
	"net/url"
	"strings"
	"testing"

	"github.com/unkn0wn-root/variantcache/internal/util"
)

func TestPointerTagRoundTrip(t *testing.T) {
	names := []string{"checkout-test", "a", "with:colon", "päge test", strings.Repeat("n", 300)}
	for _, k := range []Kind{KindAB, KindMVT} {
		for _, n := range names {
			tag := PointerTag(k, n)
			gotK, gotN, ok := ParsePointerTag(tag)
			if !ok || gotK != k || gotN != n {
				t.Fatalf("ParsePointerTag(%q) = (%v, %q, %v), want (%v, %q, true)", tag, gotK, gotN, ok, k, n)
			}
		}
	}
	if PointerTag(KindAB, "checkout-test") != "AB:checkout-test" {
		t.Fatalf("unexpected AB pointer tag %q", PointerTag(KindAB, "checkout-test"))
	}
}

func TestParsePointerTagRejectsUnknown(t *testing.T) {
	for _, tag := range []string{"", "AB", "AB:", "ab:lower", "CP:retired-kind", ":name", "MVTX:x"} {
		if _, _, ok := ParsePointerTag(tag); ok {
			t.Fatalf("ParsePointerTag(%q) should be invalid", tag)
		}
	}
}

func TestVariantKeyDeterministic(t *testing.T) {
	base := "page:shop|/checkout|"
	k1 := VariantKey(base, KindAB, "checkout-test", VariantSuffix("B"))
	k2 := VariantKey(base, KindAB, "checkout-test", VariantSuffix("B"))
	if k1 != k2 {
		t.Fatalf("same inputs gave different keys: %q vs %q", k1, k2)
	}
}

func TestVariantKeyCollisionFree(t *testing.T) {
	base := "page:shop|/p|"
	type tuple struct {
		base string
		kind Kind
		test string
		sfx  Suffix
	}
	tuples := []tuple{
		{base, KindAB, "t", VariantSuffix("B")},
		{base, KindMVT, "t", VariantSuffix("B")},
		{base, KindAB, "t", VariantSuffix("C")},
		{base, KindAB, "t", ExcludedSuffix},
		{base, KindAB, "t", VariantSuffix("x")},
		{base, KindAB, "t|v:B", ExcludedSuffix},
		{base, KindAB, "t|v", VariantSuffix("B")},
		{base, KindAB, "u", VariantSuffix("B")},
		{base + "x", KindAB, "t", VariantSuffix("B")},
		{base, KindAB, "t", VariantSuffix("")},
	}
	seen := make(map[string]tuple)
	for _, tp := range tuples {
		k := VariantKey(tp.base, tp.kind, tp.test, tp.sfx)
		if prev, dup := seen[k]; dup {
			t.Fatalf("collision on %q: %+v vs %+v", k, prev, tp)
		}
		seen[k] = tp
		if strings.HasPrefix(k, basePrefix+":") {
			t.Fatalf("variant key %q lives in the base key space", k)
		}
	}
}

func TestBaseKeyShape(t *testing.T) {
	req := Request{
		Site:      "shop",
		Path:      "/products",
		Query:     url.Values{"b": {"2"}, "a": {"1"}},
		Variation: "en-US",
	}
	got := BaseKey(req, nil)
	if got != "page:4:shop|9:/products|7:a=1&b=2|5:en-US" {
		t.Fatalf("unexpected base key %q", got)
	}
	reordered := req
	reordered.Query = url.Values{"a": {"1"}, "b": {"2"}}
	if BaseKey(reordered, nil) != got {
		t.Fatalf("query order changed the base key")
	}
	custom := BaseKey(req, func(r Request) string { return r.Path })
	if custom != "page:/products" {
		t.Fatalf("custom key func ignored: %q", custom)
	}
}

func TestBaseKeySeparatorsInPartsDoNotCollide(t *testing.T) {
	pairs := [][2]Request{
		{{Site: "shop", Path: "/p?a=1"}, {Site: "shop", Path: "/p", Query: url.Values{"a": {"1"}}}},
		{{Site: "shop|x", Path: "/p"}, {Site: "shop", Path: "x|/p"}},
		{{Site: "shop", Path: "/p|en"}, {Site: "shop", Path: "/p", Variation: "en"}},
		{{Site: "shop", Path: "/p", Query: url.Values{"v": {"1|x"}}}, {Site: "shop", Path: "/p", Query: url.Values{"v": {"1"}}, Variation: "x"}},
		{{Site: "1:a", Path: "/p"}, {Site: "1", Path: "a/p"}},
	}
	for _, p := range pairs {
		a, b := BaseKey(p[0], nil), BaseKey(p[1], nil)
		if a == b {
			t.Fatalf("%+v and %+v share base key %q", p[0], p[1], a)
		}
	}
}

func TestLongKeysAreDigested(t *testing.T) {
	req := Request{Site: "shop", Path: "/" + strings.Repeat("p", 400)}
	base := BaseKey(req, nil)
	if len(base) > util.MaxKeyLen || !strings.HasPrefix(base, "page:#") {
		t.Fatalf("long base key not digested: %q", base)
	}
	vk := VariantKey(base, KindAB, strings.Repeat("t", 300), VariantSuffix("B"))
	if len(vk) > util.MaxKeyLen || !strings.HasPrefix(vk, "variant:#") {
		t.Fatalf("long variant key not digested: %q", vk)
	}
}

func TestDependencyTagsAreDistinct(t *testing.T) {
	tags := []string{
		AllVariantsTag(KindAB),
		AllVariantsTag(KindMVT),
		TestTag(KindAB, "shop", "t"),
		TestTag(KindMVT, "shop", "t"),
		TestTag(KindAB, "shop:t", ""),
		TestTag(KindAB, "other", "t"),
		VariantTag(KindAB, "shop", "t", "B"),
		VariantTag(KindAB, "shop", "t:B", ""),
		DefaultSettingTag,
	}
	seen := make(map[string]bool)
	for _, tg := range tags {
		if seen[tg] {
			t.Fatalf("duplicate tag %q", tg)
		}
		seen[tg] = true
	}
}
