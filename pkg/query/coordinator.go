// Package query fans reads out across shards with a hard time bound and
// aggregates whatever answered in time.
package query

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"rulereg/pkg/metrics"
	"rulereg/pkg/record"
	"rulereg/pkg/regerrors"
	"rulereg/pkg/shard"
	"rulereg/pkg/types"
)

// Result aggregates one fan-out. Partial results are a valid, reported
// outcome: shards that were unowned, unreachable or too slow appear in
// Missing with their reason in Errs, and the responses that did arrive are
// kept. The call as a whole never fails because one shard did.
type Result struct {
	// Records from every shard that answered in time, concatenated.
	Records []*record.Record
	// Answered lists shards that responded.
	Answered []types.ShardID
	// Missing lists shards omitted from Records.
	Missing []types.ShardID
	// Errs explains each missing shard: ErrRoutingGap for unowned shards,
	// a TransportError or deadline error otherwise.
	Errs map[types.ShardID]error
}

// Coordinator owns the fan-out policy over one shard map. It is handed the
// map explicitly; there is no process-wide shard table.
type Coordinator struct {
	shards  *shard.Map
	timeout time.Duration
	col     metrics.Collector
}

// New builds a coordinator over shards with the given per-query time bound.
func New(shards *shard.Map, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Coordinator{
		shards:  shards,
		timeout: timeout,
		col:     metrics.Nop(),
	}
}

// WithCollector attaches a metrics collector and returns the coordinator.
func (c *Coordinator) WithCollector(col metrics.Collector) *Coordinator {
	if col != nil {
		c.col = col
	}
	return c
}

// Query fans a read out to the owners of the given shards, waits at most the
// configured timeout and aggregates the responses that made it. Passing no
// shard ids queries the whole shard space.
func (c *Coordinator) Query(ctx context.Context, shardIDs ...types.ShardID) Result {
	if len(shardIDs) == 0 {
		shardIDs = c.shards.ShardIDs()
	}

	start := time.Now()
	defer func() {
		c.col.ObserveHistogram("rulereg_query_fanout_seconds", nil, time.Since(start).Seconds())
	}()

	res := Result{Errs: make(map[types.ShardID]error, len(shardIDs))}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)

	for _, id := range shardIDs {
		id := id
		handle, err := c.shards.Handle(id)
		if err != nil {
			// routing gap: reported, never treated as empty data
			res.Missing = append(res.Missing, id)
			res.Errs[id] = err
			c.col.IncCounter("rulereg_query_shard_failures_total", map[string]string{"reason": "routing_gap"}, 1)
			continue
		}

		g.Go(func() error {
			recs, err := handle.Receive(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if !regerrors.IsTransport(err) {
					err = &regerrors.TransportError{Peer: handle.Identity(), Op: "receive", Err: err}
				}
				res.Missing = append(res.Missing, id)
				res.Errs[id] = err
				c.col.IncCounter("rulereg_query_shard_failures_total", map[string]string{"reason": "transport"}, 1)
				return nil // partial failure is not a group failure
			}
			res.Answered = append(res.Answered, id)
			res.Records = append(res.Records, recs...)
			return nil
		})
	}

	g.Wait()
	return res
}
