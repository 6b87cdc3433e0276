package clock

import (
	"testing"

	"rulereg/pkg/types"
)

func mk(entries map[types.NodeID]uint64) Vector {
	v := New()
	for node, n := range entries {
		v[node] = n
	}
	return v
}

func TestVector_IncrementGet(t *testing.T) {
	v := New()
	if got := v.Get("a"); got != 0 {
		t.Fatalf("expected 0 for absent entry, got %d", got)
	}

	v.Increment("a")
	v.Increment("a")
	v.Increment("b")

	if got := v.Get("a"); got != 2 {
		t.Fatalf("expected a=2, got %d", got)
	}
	if got := v.Get("b"); got != 1 {
		t.Fatalf("expected b=1, got %d", got)
	}
}

func TestVector_MergeLaws(t *testing.T) {
	a := mk(map[types.NodeID]uint64{"a": 3, "b": 1})
	b := mk(map[types.NodeID]uint64{"b": 4, "c": 2})
	c := mk(map[types.NodeID]uint64{"a": 1, "c": 5})

	// commutativity
	ab := a.Clone()
	ab.Merge(b)
	ba := b.Clone()
	ba.Merge(a)
	if !ab.Equal(ba) {
		t.Fatalf("merge not commutative: %s vs %s", ab, ba)
	}

	// associativity
	left := a.Clone()
	left.Merge(b)
	left.Merge(c)
	bc := b.Clone()
	bc.Merge(c)
	right := a.Clone()
	right.Merge(bc)
	if !left.Equal(right) {
		t.Fatalf("merge not associative: %s vs %s", left, right)
	}

	// idempotence
	aa := a.Clone()
	aa.Merge(a)
	if !aa.Equal(a) {
		t.Fatalf("merge not idempotent: %s vs %s", aa, a)
	}
}

func TestVector_HappensBefore(t *testing.T) {
	a := mk(map[types.NodeID]uint64{"a": 1})
	a2 := mk(map[types.NodeID]uint64{"a": 2})
	a2b := mk(map[types.NodeID]uint64{"a": 2, "b": 1})

	if !a.HappensBefore(a2) {
		t.Fatal("expected {a:1} -> {a:2}")
	}
	if a2.HappensBefore(a) {
		t.Fatal("unexpected {a:2} -> {a:1}")
	}

	// irreflexive
	if a.HappensBefore(a) {
		t.Fatal("happens-before must be irreflexive")
	}

	// transitive
	if !a.HappensBefore(a2b) {
		t.Fatal("expected transitivity {a:1} -> {a:2,b:1}")
	}

	// an entry absent from the left side still orders the clocks
	b := mk(map[types.NodeID]uint64{"a": 1, "b": 1})
	if !a.HappensBefore(b) {
		t.Fatal("expected {a:1} -> {a:1,b:1}")
	}
}

func TestVector_Concurrent(t *testing.T) {
	a := mk(map[types.NodeID]uint64{"a": 1})
	b := mk(map[types.NodeID]uint64{"b": 1})

	if !a.Concurrent(b) || !b.Concurrent(a) {
		t.Fatal("independent writes must be concurrent in both directions")
	}

	a2 := mk(map[types.NodeID]uint64{"a": 2})
	if a.Concurrent(a2) {
		t.Fatal("causally ordered clocks reported concurrent")
	}

	// equal clocks carry no causal order either way
	if !a.Concurrent(a.Clone()) {
		t.Fatal("equal clocks must be concurrent")
	}
}

func TestVector_CloneIsIndependent(t *testing.T) {
	a := mk(map[types.NodeID]uint64{"a": 1})
	c := a.Clone()
	c.Increment("a")
	if a.Get("a") != 1 {
		t.Fatalf("clone mutation leaked into original: %s", a)
	}
}
