// Package registry holds one node's keyed set of versioned rule records and
// owns the merge, update and sync paths that make replicas converge.
//
// Convergence is eventual and order independent: Merge applies the configured
// conflict resolver per key, and because the resolver is deterministic and
// idempotent, applying the same gossip payload twice or in any order yields
// the same final state. There is no cross-key atomicity and no cross-node
// coordination here; during a partition a node keeps serving locally stale
// reads and catches up once gossip resumes.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zhangyunhao116/skipmap"

	"rulereg/pkg/cluster"
	"rulereg/pkg/metrics"
	"rulereg/pkg/record"
	"rulereg/pkg/regerrors"
	"rulereg/pkg/types"
)

type recordMap = skipmap.FuncMap[string, *record.Record]

// Registry is the per-node store. Reads go through the skip map lock-free;
// mutations are serialized by one mutex and swap in fresh record copies, so a
// concurrent reader always sees a complete record. Local operations never
// touch the network; only Sync does I/O, through the peer handle.
type Registry struct {
	node     types.NodeID
	resolver *record.Resolver
	col      metrics.Collector

	mu      sync.Mutex // serializes mutations
	records *recordMap
}

// New creates an empty registry owned by node.
func New(node types.NodeID, resolver *record.Resolver) *Registry {
	return &Registry{
		node:     node,
		resolver: resolver,
		col:      metrics.Nop(),
		records: skipmap.NewFunc[string, *record.Record](func(a, b string) bool {
			return a < b
		}),
	}
}

// WithCollector attaches a metrics collector and returns the registry.
func (r *Registry) WithCollector(c metrics.Collector) *Registry {
	if c != nil {
		r.col = c
	}
	return r
}

// Node returns the owning node's identity.
func (r *Registry) Node() types.NodeID { return r.node }

// AddLocal creates a record for a key this node has never seen. Existing
// keys fail with ErrKeyExists; mutate those through Update.
func (r *Registry) AddLocal(key types.Key, body json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records.Load(key); ok {
		return fmt.Errorf("add %q: %w", key, regerrors.ErrKeyExists)
	}

	r.records.Store(key, record.New(key, body, r.node))
	r.col.SetGauge("rulereg_registry_records", nil, float64(r.records.Len()))
	return nil
}

// Update replaces the payload of an existing record and advances its clock
// at the local node. Absent keys fail with ErrNotFound.
func (r *Registry) Update(key types.Key, body json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.records.Load(key)
	if !ok {
		return fmt.Errorf("update %q: %w", key, regerrors.ErrNotFound)
	}

	next := cur.Clone()
	next.Update(body, r.node)
	r.records.Store(key, next)
	return nil
}

// Merge reconciles an incoming record, typically delivered by gossip, with
// local state. Absent keys insert the incoming record as-is; otherwise the
// configured resolver picks the winner. Merge is idempotent and commutative
// per key.
//
// Under the Manual strategy a concurrent pair keeps the local record and
// returns an *record.UnresolvedConflictError; the caller owns surfacing it.
func (r *Registry) Merge(key types.Key, incoming *record.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	local, ok := r.records.Load(key)
	if !ok {
		r.records.Store(key, incoming.Clone())
		r.col.IncCounter("rulereg_registry_merges_total", map[string]string{"result": "inserted"}, 1)
		r.col.SetGauge("rulereg_registry_records", nil, float64(r.records.Len()))
		return nil
	}

	winner, err := r.resolver.Resolve(local, incoming)
	if err != nil {
		r.col.IncCounter("rulereg_registry_merges_total", map[string]string{"result": "unresolved"}, 1)
		return err
	}

	if winner == local || winner.Equal(local) {
		r.col.IncCounter("rulereg_registry_merges_total", map[string]string{"result": "kept"}, 1)
		return nil
	}

	r.records.Store(key, winner.Clone())
	r.col.IncCounter("rulereg_registry_merges_total", map[string]string{"result": "applied"}, 1)
	return nil
}

// Get returns the payload stored under key.
func (r *Registry) Get(key types.Key) (json.RawMessage, bool) {
	rec, ok := r.records.Load(key)
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), rec.Body...), true
}

// GetRecord returns a copy of the full versioned record.
func (r *Registry) GetRecord(key types.Key) (*record.Record, bool) {
	rec, ok := r.records.Load(key)
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Len returns the number of records held.
func (r *Registry) Len() int {
	return r.records.Len()
}

// Records returns a key-ordered snapshot of all records. This is what the
// node discloses to peers.
func (r *Registry) Records() []*record.Record {
	out := make([]*record.Record, 0, r.records.Len())
	r.records.Range(func(_ string, rec *record.Record) bool {
		out = append(out, rec.Clone())
		return true
	})
	return out
}

// Sync pulls the records peer is willing to disclose and merges each one.
// maxRecords bounds the batch (0 means unbounded); truncation is
// deterministic, keeping the first maxRecords in key order. Transport
// failures abort the pull; unresolved conflicts are collected and returned
// joined, after every record has been attempted.
func (r *Registry) Sync(ctx context.Context, peer cluster.NodeHandle, maxRecords int) error {
	recs, err := peer.Receive(ctx)
	if err != nil {
		return fmt.Errorf("sync with %s: %w", peer.Identity(), err)
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].Key < recs[j].Key })
	if maxRecords > 0 && len(recs) > maxRecords {
		recs = recs[:maxRecords]
	}

	var unresolved []error
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.Merge(rec.Key, rec); err != nil {
			unresolved = append(unresolved, err)
		}
	}
	return errors.Join(unresolved...)
}
