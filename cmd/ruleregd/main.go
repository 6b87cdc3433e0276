// ruleregd runs one rule-registry node: the local registry, its HTTP
// surface, the gossip scheduler and shard routing for cluster-wide reads.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/google/uuid"

	httpserver "rulereg/internal/http"
	"rulereg/pkg/cluster"
	"rulereg/pkg/gossip"
	"rulereg/pkg/metrics"
	"rulereg/pkg/query"
	"rulereg/pkg/record"
	"rulereg/pkg/registry"
	"rulereg/pkg/shard"
	"rulereg/pkg/types"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("node failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := initConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	initLogger(&cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	nodeID := types.NodeID(cfg.Node.ID)
	if nodeID == "" {
		nodeID = types.NodeID(uuid.New().String())
		slog.Info("no node id configured, generated one", "node", nodeID)
	}

	strategy, err := record.ParseStrategy(cfg.Conflict.Strategy)
	if err != nil {
		return err
	}

	collector := metrics.NewProm()
	reg := registry.New(nodeID, record.NewResolver(strategy)).WithCollector(collector)

	router := shard.NewRouter(cfg.Sharding.ShardCount)
	shardMap := shard.NewMap(router)

	sched := gossip.NewScheduler(reg, gossip.Options{
		Interval:     cfg.Gossip.Interval,
		Fanout:       cfg.Gossip.Fanout,
		MaxBatchSize: cfg.Gossip.MaxBatchSize,
		SyncTimeout:  cfg.Gossip.SyncTimeout,
	}).WithCollector(collector)

	local := cluster.NewLocalHandle(nodeID, reg)
	factory := cluster.NewHTTPHandleFactory()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Zookeeper.Enabled {
		membership, err := cluster.NewZKMembership(
			cfg.Zookeeper.Servers, cfg.Zookeeper.RootPath, nodeID, cfg.Node.AdvertiseURL)
		if err != nil {
			return fmt.Errorf("zookeeper membership: %w", err)
		}
		defer membership.Close()

		if err := membership.RegisterSelf(); err != nil {
			return fmt.Errorf("zookeeper register: %w", err)
		}
		membership.RunWatch(ctx, func(peers map[types.NodeID]string) {
			applyPeers(sched, shardMap, local, factory, peers)
		})
	} else {
		peers := make(map[types.NodeID]string, len(cfg.Peers))
		for _, p := range cfg.Peers {
			peers[types.NodeID(p.ID)] = p.URL
		}
		applyPeers(sched, shardMap, local, factory, peers)
	}

	coordinator := query.New(shardMap, cfg.Sharding.CrossShardTimeout).WithCollector(collector)

	server := httpserver.NewServer(reg, strconv.Itoa(cfg.Server.Port)).
		WithCoordinator(coordinator).
		WithMetricsHandler(collector.Handler())
	if err := server.Start(); err != nil {
		return err
	}

	go sched.Run(ctx)

	slog.Info("node running",
		"node", nodeID,
		"shards", cfg.Sharding.ShardCount,
		"strategy", strategy,
		"zookeeper", cfg.Zookeeper.Enabled)

	<-ctx.Done()
	slog.Info("shutting down")
	return server.Stop()
}

// applyPeers swaps the gossip peer set and redistributes shard ownership
// round-robin over the membership, local node included. Every node computes
// the same assignment because the membership is sorted by node id.
func applyPeers(
	sched *gossip.Scheduler,
	shardMap *shard.Map,
	local cluster.NodeHandle,
	factory cluster.ClientFactory,
	peers map[types.NodeID]string,
) {
	handles := make(map[types.NodeID]cluster.NodeHandle, len(peers)+1)
	handles[local.Identity()] = local
	for id, addr := range peers {
		handles[id] = factory(id, addr)
	}
	sched.SetPeers(handles)

	ids := make([]types.NodeID, 0, len(handles))
	for id := range handles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, sid := range shardMap.ShardIDs() {
		owner := ids[int(sid)%len(ids)]
		if err := shardMap.Assign(sid, handles[owner]); err != nil {
			slog.Warn("shard assignment failed", "shard", sid, "node", owner, "err", err)
		}
	}
	slog.Info("membership applied", "nodes", len(ids), "peers", len(peers))
}
