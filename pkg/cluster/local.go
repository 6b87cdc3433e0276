package cluster

import (
	"context"

	"rulereg/pkg/record"
	"rulereg/pkg/types"
)

// RecordStore is the slice of a registry a LocalHandle needs. *registry.Registry
// satisfies it.
type RecordStore interface {
	Records() []*record.Record
	Merge(key types.Key, incoming *record.Record) error
}

// LocalHandle adapts an in-process registry to the NodeHandle interface. It
// is the test adapter and the building block for single-binary topologies.
type LocalHandle struct {
	id    types.NodeID
	store RecordStore
}

func NewLocalHandle(id types.NodeID, store RecordStore) *LocalHandle {
	return &LocalHandle{id: id, store: store}
}

func (h *LocalHandle) Identity() types.NodeID { return h.id }

func (h *LocalHandle) IsAvailable() bool { return true }

func (h *LocalHandle) Send(_ context.Context, rec *record.Record) error {
	return h.store.Merge(rec.Key, rec)
}

func (h *LocalHandle) Receive(_ context.Context) ([]*record.Record, error) {
	return h.store.Records(), nil
}
