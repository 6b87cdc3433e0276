// Package record wraps opaque rule payloads with the versioning metadata the
// registry needs to reconcile replicas: a vector clock snapshot, the node
// that produced the latest mutation, and a wall-clock tie-breaker.
package record

import (
	"bytes"
	"encoding/json"
	"time"

	"rulereg/pkg/clock"
	"rulereg/pkg/types"
)

// Record is one versioned rule. The body is opaque to the registry core; the
// key identifies it, everything else is domain meaning this layer never
// interprets. Payload and version always move together: Update replaces the
// body and advances the clock in one step, there is no partial update.
type Record struct {
	Key       types.Key          `json:"key"`
	Body      json.RawMessage    `json:"body"`
	Clock     clock.Vector       `json:"clock"`
	Origin    types.NodeID       `json:"origin"`
	UpdatedAt types.TimestampSec `json:"updated_at"`
}

// New creates a fresh record authored at node. The clock starts at {node: 1}.
func New(key types.Key, body json.RawMessage, node types.NodeID) *Record {
	v := clock.New()
	v.Increment(node)
	return &Record{
		Key:       key,
		Body:      append(json.RawMessage(nil), body...),
		Clock:     v,
		Origin:    node,
		UpdatedAt: types.TimestampSec(time.Now().Unix()),
	}
}

// Update replaces the body, advances the clock at node and refreshes the
// tie-breaking timestamp.
func (r *Record) Update(body json.RawMessage, node types.NodeID) {
	r.Body = append(json.RawMessage(nil), body...)
	r.Clock.Increment(node)
	r.Origin = node
	r.UpdatedAt = types.TimestampSec(time.Now().Unix())
}

// Clone returns an independent deep copy.
func (r *Record) Clone() *Record {
	return &Record{
		Key:       r.Key,
		Body:      append(json.RawMessage(nil), r.Body...),
		Clock:     r.Clock.Clone(),
		Origin:    r.Origin,
		UpdatedAt: r.UpdatedAt,
	}
}

// Equal reports whether two records carry the same payload and version.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.Key == other.Key &&
		r.Origin == other.Origin &&
		r.UpdatedAt == other.UpdatedAt &&
		r.Clock.Equal(other.Clock) &&
		bytes.Equal(r.Body, other.Body)
}
