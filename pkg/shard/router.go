// Package shard partitions the key space across nodes: a deterministic
// key-to-shard router and a map binding shards to node handles.
package shard

import (
	"fmt"
	"hash/fnv"

	"rulereg/pkg/types"
)

// Router deterministically maps keys to shards with FNV-1a modulo the shard
// count. The mapping is pure: the same key and shard count always produce
// the same shard on every node.
//
// There is no consistent-hashing ring: changing the shard count remaps
// nearly every key, so the count is fixed at startup for the lifetime of a
// deployment. Resharding means a full rebuild.
type Router struct {
	shardCount uint32
}

// NewRouter creates a router over shardCount shards. A non-positive count is
// a programmer error and panics at construction.
func NewRouter(shardCount int) *Router {
	if shardCount <= 0 {
		panic(fmt.Sprintf("rulereg: shard count must be positive, got %d", shardCount))
	}
	return &Router{shardCount: uint32(shardCount)}
}

// ShardCount returns the fixed number of shards.
func (r *Router) ShardCount() int { return int(r.shardCount) }

// AssignShard returns the shard owning key, always in [0, shard count).
func (r *Router) AssignShard(key types.Key) types.ShardID {
	h := fnv.New32a()
	h.Write([]byte(key))
	return types.ShardID(h.Sum32() % r.shardCount)
}
