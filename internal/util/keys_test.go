package util

import (
	"reflect"
	"strings"
	"testing"
)

func TestShortKeyKeepsShortKeys(t *testing.T) {
	k := "page:site|/products?id=1"
	if got := ShortKey("page", k); got != k {
		t.Fatalf("got %q want %q", got, k)
	}
}

func TestShortKeyDigestsLongKeys(t *testing.T) {
	long := strings.Repeat("x", MaxKeyLen+1)
	got := ShortKey("page", long)
	if len(got) > MaxKeyLen || !strings.HasPrefix(got, "page:#") {
		t.Fatalf("unexpected digest key %q", got)
	}
	if got != ShortKey("page", long) {
		t.Fatalf("digest not deterministic")
	}
	if got == ShortKey("page", long+"y") {
		t.Fatalf("distinct keys produced the same digest")
	}
}

func TestUniqSorted(t *testing.T) {
	cases := []struct {
		in   []string
		want []string
	}{
		{nil, []string{}},
		{[]string{"b", "a", "b", "", "c", "a"}, []string{"a", "b", "c"}},
		{[]string{"", ""}, []string{}},
	}
	for _, tc := range cases {
		if got := UniqSorted(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("UniqSorted(%v) = %v want %v", tc.in, got, tc.want)
		}
	}
}

func TestUniqSortedDoesNotMutateInput(t *testing.T) {
	in := []string{"z", "a"}
	_ = UniqSorted(in)
	if in[0] != "z" || in[1] != "a" {
		t.Fatalf("input mutated: %v", in)
	}
}
