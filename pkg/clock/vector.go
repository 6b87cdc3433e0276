package clock

import (
	"fmt"
	"sort"
	"strings"

	"rulereg/pkg/types"
)

// Vector is a vector clock: per-node counters tracking causality between
// replicas. Absent entries are implicitly zero. A node only ever increments
// its own entry; counters never decrease.
//
// Vector is a plain value type with no failure modes. It is not safe for
// concurrent mutation; owners copy before sharing (see Clone).
type Vector map[types.NodeID]uint64

// New returns an empty vector clock.
func New() Vector {
	return make(Vector)
}

// Increment advances the counter for node by one.
func (v Vector) Increment(node types.NodeID) {
	v[node]++
}

// Get returns the stored counter for node, or 0 if absent.
func (v Vector) Get(node types.NodeID) uint64 {
	return v[node]
}

// Merge folds other into v: for every node in either clock the resulting
// entry is the pointwise maximum. The join is commutative, associative and
// idempotent, which is what makes convergence independent of delivery order
// and duplication.
func (v Vector) Merge(other Vector) {
	for node, n := range other {
		if n > v[node] {
			v[node] = n
		}
	}
}

// HappensBefore reports whether v is a strict causal ancestor of other:
// every entry of v is <= the matching entry of other, and other is strictly
// ahead somewhere. This is a strict partial order (irreflexive, transitive).
func (v Vector) HappensBefore(other Vector) bool {
	strict := false
	for node, n := range v {
		on := other[node]
		if n > on {
			return false
		}
		if n < on {
			strict = true
		}
	}
	if strict {
		return true
	}
	for node, on := range other {
		if on > v[node] {
			return true
		}
	}
	return false
}

// Concurrent reports whether neither clock happens-before the other.
// Concurrent(a, b) == Concurrent(b, a). Equal clocks are concurrent: with no
// strict causal order between them a tie-break is still required.
func (v Vector) Concurrent(other Vector) bool {
	return !v.HappensBefore(other) && !other.HappensBefore(v)
}

// Equal reports whether both clocks hold the same counters, treating absent
// entries as zero.
func (v Vector) Equal(other Vector) bool {
	for node, n := range v {
		if n != other[node] {
			return false
		}
	}
	for node, on := range other {
		if on != v[node] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of v.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	for node, n := range v {
		out[node] = n
	}
	return out
}

// String renders entries sorted by node for stable log output.
func (v Vector) String() string {
	nodes := make([]string, 0, len(v))
	for node := range v {
		nodes = append(nodes, string(node))
	}
	sort.Strings(nodes)

	var b strings.Builder
	b.WriteByte('{')
	for i, node := range nodes {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s:%d", node, v[types.NodeID(node)])
	}
	b.WriteByte('}')
	return b.String()
}
