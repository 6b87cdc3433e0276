// Package gossip drives epidemic propagation: every interval the scheduler
// picks a small random subset of peers and pulls their state into the local
// registry.
//
// Convergence is probabilistic, not instantaneous: each round spreads state
// a little further, and all reachable nodes converge over multiple rounds
// with likelihood improving with fanout and round count. Callers must not
// assume a bound on how many rounds full convergence takes.
package gossip

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zhangyunhao116/fastrand"

	"rulereg/pkg/cluster"
	"rulereg/pkg/metrics"
	"rulereg/pkg/regerrors"
	"rulereg/pkg/types"
)

// Scheduler states.
const (
	StateIdle    = "idle"
	StateSyncing = "syncing"
)

// iRegistry is the slice of the registry the scheduler drives.
type iRegistry interface {
	Node() types.NodeID
	Sync(ctx context.Context, peer cluster.NodeHandle, maxRecords int) error
}

// iProber is implemented by handles whose liveness hint can be refreshed
// with a cheap health check.
type iProber interface {
	Probe(ctx context.Context) error
}

// Options bound one gossip round.
type Options struct {
	// Interval between rounds.
	Interval time.Duration
	// Fanout is the maximum number of peers contacted per round.
	Fanout int
	// MaxBatchSize bounds records merged per sync call; 0 means unbounded.
	MaxBatchSize int
	// SyncTimeout bounds one peer sync so a slow peer never stalls the round.
	SyncTimeout time.Duration
}

// Round reports what one gossip round did. Per-peer failures are recorded
// here and in metrics, never propagated as fatal: one dead peer must not
// keep the round from the remaining selected peers.
type Round struct {
	ID        uuid.UUID
	Contacted []types.NodeID
	Failures  map[types.NodeID]error
}

// Scheduler periodically gossips with a random peer subset. The peer set is
// swapped wholesale by membership updates (static config or the ZooKeeper
// watch) and never includes the local node.
type Scheduler struct {
	reg  iRegistry
	opts Options
	col  metrics.Collector

	mu    sync.RWMutex
	peers map[types.NodeID]cluster.NodeHandle

	syncing atomic.Bool
}

// NewScheduler builds a scheduler over reg. A non-positive fanout is a
// programmer error and panics at construction.
func NewScheduler(reg iRegistry, opts Options) *Scheduler {
	if opts.Fanout <= 0 {
		panic("rulereg: gossip fanout must be positive")
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = 5 * time.Second
	}
	return &Scheduler{
		reg:   reg,
		opts:  opts,
		col:   metrics.Nop(),
		peers: make(map[types.NodeID]cluster.NodeHandle),
	}
}

// WithCollector attaches a metrics collector and returns the scheduler.
func (s *Scheduler) WithCollector(c metrics.Collector) *Scheduler {
	if c != nil {
		s.col = c
	}
	return s
}

// State reports whether the scheduler is between ticks or mid-round.
func (s *Scheduler) State() string {
	if s.syncing.Load() {
		return StateSyncing
	}
	return StateIdle
}

// SetPeers replaces the known peer set. The local node is dropped if present.
func (s *Scheduler) SetPeers(peers map[types.NodeID]cluster.NodeHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers = make(map[types.NodeID]cluster.NodeHandle, len(peers))
	for id, h := range peers {
		if id == s.reg.Node() {
			continue
		}
		s.peers[id] = h
	}
	s.col.SetGauge("rulereg_gossip_peers", nil, float64(len(s.peers)))
}

// AddPeer registers a single peer.
func (s *Scheduler) AddPeer(h cluster.NodeHandle) {
	if h.Identity() == s.reg.Node() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[h.Identity()] = h
	s.col.SetGauge("rulereg_gossip_peers", nil, float64(len(s.peers)))
}

// RemovePeer forgets a peer.
func (s *Scheduler) RemovePeer(id types.NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, id)
	s.col.SetGauge("rulereg_gossip_peers", nil, float64(len(s.peers)))
}

// selectPeers picks up to fanout peers uniformly at random, never the local
// node (excluded at insertion) and never more than fanout even when more are
// known.
func (s *Scheduler) selectPeers() []cluster.NodeHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]cluster.NodeHandle, 0, len(s.peers))
	for _, h := range s.peers {
		all = append(all, h)
	}
	fastrand.Shuffle(len(all), func(i, j int) {
		all[i], all[j] = all[j], all[i]
	})
	if len(all) > s.opts.Fanout {
		all = all[:s.opts.Fanout]
	}
	return all
}

// RunRound performs one gossip round: select peers, sync with each, record
// failures. Cancelling ctx stops contacting further peers; an in-flight
// merge always completes, so cancellation never corrupts registry state.
func (s *Scheduler) RunRound(ctx context.Context) Round {
	s.syncing.Store(true)
	defer s.syncing.Store(false)

	round := Round{
		ID:       uuid.New(),
		Failures: make(map[types.NodeID]error),
	}

	selected := s.selectPeers()
	s.col.IncCounter("rulereg_gossip_rounds_total", nil, 1)
	if len(selected) == 0 {
		slog.Debug("gossip round skipped", "round", round.ID, "err", regerrors.ErrNoPeers)
		return round
	}

	for _, peer := range selected {
		if ctx.Err() != nil {
			return round
		}

		id := peer.Identity()
		if !peer.IsAvailable() {
			// The hint latches false on a transport failure; only a
			// successful call flips it back. A down peer therefore gets a
			// probe each round, otherwise a healed peer would be skipped
			// forever and the cluster could never re-converge.
			if p, ok := peer.(iProber); ok {
				probeCtx, cancel := context.WithTimeout(ctx, s.opts.SyncTimeout)
				err := p.Probe(probeCtx)
				cancel()
				if err != nil {
					round.Failures[id] = err
					s.col.IncCounter("rulereg_gossip_peer_failures_total", map[string]string{"reason": "unavailable"}, 1)
					slog.Debug("gossip peer still down", "round", round.ID, "peer", id, "err", err)
					continue
				}
			}
			// No probe surface: attempt the sync anyway; its outcome is the
			// only thing that can refresh the hint.
		}

		start := time.Now()
		syncCtx, cancel := context.WithTimeout(ctx, s.opts.SyncTimeout)
		err := s.reg.Sync(syncCtx, peer, s.opts.MaxBatchSize)
		cancel()
		s.col.ObserveHistogram("rulereg_gossip_sync_seconds", nil, time.Since(start).Seconds())

		round.Contacted = append(round.Contacted, id)
		if err != nil {
			round.Failures[id] = err
			s.col.IncCounter("rulereg_gossip_peer_failures_total", map[string]string{"reason": "sync"}, 1)
			slog.Warn("gossip sync failed", "round", round.ID, "peer", id, "err", err)
		}
	}
	return round
}

// Run gossips every interval until ctx is cancelled. Cancellation stops
// future ticks; it does not unwind state already merged.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	slog.Info("gossip scheduler started",
		"interval", s.opts.Interval, "fanout", s.opts.Fanout, "max_batch", s.opts.MaxBatchSize)

	for {
		select {
		case <-ticker.C:
			s.RunRound(ctx)
		case <-ctx.Done():
			slog.Info("gossip scheduler stopped")
			return
		}
	}
}
