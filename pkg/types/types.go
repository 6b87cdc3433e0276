package types

// Key identifies a rule record in the registry.
type Key = string

// ShardID identifies a logical shard. Always in [0, shard count).
type ShardID uint32

// NodeID identifies a node in a cluster. NodeIDs are opaque and totally
// ordered bytewise; the order doubles as a deterministic tie-breaker when
// concurrent writes cannot be ordered causally.
type NodeID string

// TimestampSec is a second-precision wall-clock timestamp. It is used only
// for tie-breaking between causally concurrent writes, never for ordering
// causally related ones.
type TimestampSec int64
