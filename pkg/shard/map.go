package shard

import (
	"fmt"
	"sync"

	"rulereg/pkg/cluster"
	"rulereg/pkg/regerrors"
	"rulereg/pkg/types"
)

// Map binds shard ids to the node handles owning them. It is an owned
// object handed to whoever routes queries, not process-wide state; tests
// build their own maps around stub handles.
type Map struct {
	router *Router

	mu     sync.RWMutex
	owners map[types.ShardID]cluster.NodeHandle
}

// NewMap creates an empty shard map over router's shard space.
func NewMap(router *Router) *Map {
	return &Map{
		router: router,
		owners: make(map[types.ShardID]cluster.NodeHandle),
	}
}

// Router returns the key-to-shard mapping this map is built over.
func (m *Map) Router() *Router { return m.router }

// Assign binds a shard to the node behind handle, replacing any previous
// owner. Shard ids outside [0, shard count) are rejected.
func (m *Map) Assign(id types.ShardID, handle cluster.NodeHandle) error {
	if int(id) >= m.router.ShardCount() {
		return fmt.Errorf("assign shard %d: outside [0, %d)", id, m.router.ShardCount())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[id] = handle
	return nil
}

// Unassign drops a shard's owner, leaving a routing gap until reassigned.
func (m *Map) Unassign(id types.ShardID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.owners, id)
}

// Handle returns the owner of a shard. An unowned shard is a routing gap and
// reported as ErrRoutingGap, never as empty data.
func (m *Map) Handle(id types.ShardID) (cluster.NodeHandle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.owners[id]
	if !ok {
		return nil, fmt.Errorf("shard %d: %w", id, regerrors.ErrRoutingGap)
	}
	return h, nil
}

// GetShard returns the handle owning the key's shard.
func (m *Map) GetShard(key types.Key) (cluster.NodeHandle, error) {
	return m.Handle(m.router.AssignShard(key))
}

// ShardIDs returns every shard id in the space, owned or not.
func (m *Map) ShardIDs() []types.ShardID {
	ids := make([]types.ShardID, m.router.ShardCount())
	for i := range ids {
		ids[i] = types.ShardID(i)
	}
	return ids
}
