package ristretto

import (
	"bytes"
	"context"
	"testing"
)

func TestProviderRoundTrip(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = p.Close(ctx) })

	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("expected miss on empty store")
	}
	ok, err := p.Set(ctx, "k", []byte("<p>hi</p>"), 1, 0)
	if err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	got, ok, err := p.Get(ctx, "k")
	if err != nil || !ok || !bytes.Equal(got, []byte("<p>hi</p>")) {
		t.Fatalf("Get: ok=%v err=%v got=%q", ok, err, got)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after Del")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error on zero config")
	}
}

func TestMetricsCountHitsAndMisses(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64, Metrics: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = p.Close(ctx) })

	_, _ = p.Set(ctx, "k", []byte("v"), 1, 0)
	_, _, _ = p.Get(ctx, "k")
	_, _, _ = p.Get(ctx, "missing")
	m := p.Metrics()
	if m == nil || m.Hits() != 1 || m.Misses() != 1 {
		t.Fatalf("unexpected metrics %v", m)
	}
}
