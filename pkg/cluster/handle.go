// Package cluster defines the capability surface for talking to one replica
// and the concrete adapters behind it: an in-process handle for tests and
// single-binary setups, an HTTP client for real peers, and ZooKeeper-backed
// peer discovery.
package cluster

import (
	"context"

	"rulereg/pkg/record"
	"rulereg/pkg/types"
)

// NodeHandle is the only boundary a transport has to satisfy. The registry
// and the gossip scheduler consume peers exclusively through it and make no
// assumption about encoding, authentication or framing.
type NodeHandle interface {
	// Identity returns the peer's node id.
	Identity() types.NodeID

	// IsAvailable is a cheap, non-blocking liveness hint, not a delivery
	// guarantee.
	IsAvailable() bool

	// Send pushes one record to the peer, best effort and at most once.
	// Callers must not assume delivery.
	Send(ctx context.Context, rec *record.Record) error

	// Receive returns whatever the peer is willing to disclose right now.
	// May be empty and is safe to call repeatedly.
	Receive(ctx context.Context) ([]*record.Record, error)
}

// ClientFactory builds a handle for a remote peer at addr.
type ClientFactory func(id types.NodeID, addr string) NodeHandle
