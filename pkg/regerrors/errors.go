package regerrors

import (
	"errors"
	"fmt"

	"rulereg/pkg/types"
)

var (
	// ErrNotFound is returned by Update when the key has never been added
	// locally. Callers recover by choosing AddLocal instead.
	ErrNotFound = errors.New("rulereg: not found")

	// ErrKeyExists is returned by AddLocal for keys that already exist;
	// existing keys are mutated through Update.
	ErrKeyExists = errors.New("rulereg: key already exists")

	// ErrUnresolvedConflict marks a concurrent pair the Manual strategy
	// refused to pick a winner from. The local record is kept untouched and
	// the application layer is expected to intervene.
	ErrUnresolvedConflict = errors.New("rulereg: unresolved conflict")

	// ErrRoutingGap is returned when no node owns a requested shard. It is a
	// routing failure, not an empty result.
	ErrRoutingGap = errors.New("rulereg: no node owns shard")

	// ErrNoPeers is returned by a gossip round that found nobody to talk to.
	ErrNoPeers = errors.New("rulereg: no peers known")
)

// TransportError wraps a peer send/receive failure. It is recorded per peer
// and never fatal to a gossip round or a fan-out query.
type TransportError struct {
	Peer types.NodeID
	Op   string // "send", "receive", "probe"
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rulereg: transport %s to %s: %v", e.Op, e.Peer, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
