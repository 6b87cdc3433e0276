package record

import (
	"fmt"

	"rulereg/pkg/regerrors"
	"rulereg/pkg/types"
)

// Strategy names a conflict resolution policy.
type Strategy string

const (
	// LastWriteWins resolves every pair with the deterministic chain in
	// Resolve: causal order first, then timestamp, then origin node.
	LastWriteWins Strategy = "last-write-wins"

	// MostRecentVersion prefers strict causal ordering and only falls back
	// to the timestamp/origin tie-break for genuinely concurrent pairs.
	MostRecentVersion Strategy = "most-recent-version"

	// Manual takes causally newer records but refuses to pick between
	// concurrent ones: the local record is kept and the pair is surfaced via
	// UnresolvedConflictError so the application can decide. Nothing is ever
	// silently dropped.
	Manual Strategy = "manual"
)

// ParseStrategy maps a configuration string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case LastWriteWins, MostRecentVersion, Manual:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("rulereg: unknown conflict strategy %q", s)
}

// UnresolvedConflictError carries a concurrent pair the Manual strategy left
// for the application layer. It unwraps to regerrors.ErrUnresolvedConflict.
type UnresolvedConflictError struct {
	Key      types.Key
	Local    *Record
	Incoming *Record
}

func (e *UnresolvedConflictError) Error() string {
	return fmt.Sprintf("rulereg: unresolved conflict on %q: local %s from %s vs incoming %s from %s",
		e.Key, e.Local.Clock, e.Local.Origin, e.Incoming.Clock, e.Incoming.Origin)
}

func (e *UnresolvedConflictError) Unwrap() error { return regerrors.ErrUnresolvedConflict }

// Resolve picks a deterministic winner between two versions of the same key:
//
//  1. a strictly before b causally: b wins
//  2. b strictly before a causally: a wins
//  3. concurrent: the larger wall-clock timestamp wins
//  4. equal timestamps: the bytewise greater origin node wins
//
// The same inputs produce the same winner on every node, and re-resolving a
// winner against either input returns the winner again.
func Resolve(a, b *Record) *Record {
	if a.Clock.HappensBefore(b.Clock) {
		return b
	}
	if b.Clock.HappensBefore(a.Clock) {
		return a
	}
	if a.UpdatedAt != b.UpdatedAt {
		if a.UpdatedAt > b.UpdatedAt {
			return a
		}
		return b
	}
	if b.Origin > a.Origin {
		return b
	}
	return a
}

// Resolver applies a Strategy to local/incoming pairs during merges.
type Resolver struct {
	strategy Strategy
}

// NewResolver builds a resolver for the given strategy. Unknown strategies
// are a programmer error and panic at construction.
func NewResolver(s Strategy) *Resolver {
	switch s {
	case LastWriteWins, MostRecentVersion, Manual:
	default:
		panic(fmt.Sprintf("rulereg: unknown conflict strategy %q", s))
	}
	return &Resolver{strategy: s}
}

// Strategy returns the configured policy.
func (r *Resolver) Strategy() Strategy { return r.strategy }

// Resolve chooses between the local record and an incoming one. For Manual
// a concurrent pair returns the local record unchanged together with an
// *UnresolvedConflictError; every other case resolves without error.
func (r *Resolver) Resolve(local, incoming *Record) (*Record, error) {
	switch r.strategy {
	case LastWriteWins:
		return Resolve(local, incoming), nil

	case MostRecentVersion:
		if local.Clock.HappensBefore(incoming.Clock) {
			return incoming, nil
		}
		if incoming.Clock.HappensBefore(local.Clock) {
			return local, nil
		}
		return Resolve(local, incoming), nil

	case Manual:
		if local.Clock.HappensBefore(incoming.Clock) {
			return incoming, nil
		}
		if incoming.Clock.HappensBefore(local.Clock) {
			return local, nil
		}
		if local.Equal(incoming) {
			return local, nil
		}
		return local, &UnresolvedConflictError{Key: local.Key, Local: local, Incoming: incoming}
	}
	panic("unreachable")
}
