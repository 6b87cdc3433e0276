// Package config holds the node configuration surface: identity, HTTP
// exposure, sharding, gossip cadence, conflict strategy and peer discovery.
package config

import (
	"fmt"
	"time"

	"rulereg/pkg/record"
)

// Config is the root configuration for one registry node.
type Config struct {
	Node      NodeConfig      `yaml:"node"`
	Server    ServerConfig    `yaml:"http-server"`
	Sharding  ShardingConfig  `yaml:"sharding"`
	Gossip    GossipConfig    `yaml:"gossip"`
	Conflict  ConflictConfig  `yaml:"conflict"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	Peers     []PeerConfig    `yaml:"peers"`
	Logger    LoggerConfig    `yaml:"logger"`
}

// NodeConfig describes the identity of the node. An empty ID is filled with
// a generated one at startup.
type NodeConfig struct {
	ID           string `yaml:"id"`
	AdvertiseURL string `yaml:"advertise_url"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// ShardingConfig controls partitioning of the key space. ShardCount is fixed
// at startup: plain modulo hashing means changing it remaps nearly every key.
type ShardingConfig struct {
	ShardCount        int           `yaml:"shard_count"`
	CrossShardTimeout time.Duration `yaml:"cross_shard_timeout"`
}

// GossipConfig controls epidemic propagation.
type GossipConfig struct {
	Interval     time.Duration `yaml:"interval"`
	Fanout       int           `yaml:"fanout"`
	MaxBatchSize int           `yaml:"max_batch_size"`
	SyncTimeout  time.Duration `yaml:"sync_timeout"`
}

type ConflictConfig struct {
	Strategy string `yaml:"strategy"`
}

// ZookeeperConfig enables dynamic peer discovery. When disabled, the static
// Peers list is used instead.
type ZookeeperConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Servers  []string `yaml:"servers"`
	RootPath string   `yaml:"root_path"`
}

// PeerConfig is one statically configured peer.
type PeerConfig struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a baseline development config.
func Default() Config {
	return Config{
		Node: NodeConfig{
			AdvertiseURL: "http://localhost:8080",
		},
		Server: ServerConfig{Port: 8080},
		Sharding: ShardingConfig{
			ShardCount:        16,
			CrossShardTimeout: 2 * time.Second,
		},
		Gossip: GossipConfig{
			Interval:     time.Second,
			Fanout:       3,
			MaxBatchSize: 256,
			SyncTimeout:  5 * time.Second,
		},
		Conflict: ConflictConfig{Strategy: string(record.LastWriteWins)},
		Zookeeper: ZookeeperConfig{
			Enabled:  false,
			RootPath: "/rulereg",
		},
		Logger: LoggerConfig{Level: "INFO", JSON: false},
	}
}

// Validate enforces the fatal-at-construction invariants. Everything it
// rejects is a deployment mistake, not a runtime condition.
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Server.Port)
	}
	if c.Sharding.ShardCount <= 0 {
		return fmt.Errorf("config: shard_count must be positive, got %d", c.Sharding.ShardCount)
	}
	if c.Sharding.CrossShardTimeout <= 0 {
		return fmt.Errorf("config: cross_shard_timeout must be positive")
	}
	if c.Gossip.Interval <= 0 {
		return fmt.Errorf("config: gossip interval must be positive")
	}
	if c.Gossip.Fanout <= 0 {
		return fmt.Errorf("config: gossip fanout must be positive, got %d", c.Gossip.Fanout)
	}
	if c.Gossip.MaxBatchSize < 0 {
		return fmt.Errorf("config: gossip max_batch_size must not be negative")
	}
	if _, err := record.ParseStrategy(c.Conflict.Strategy); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Zookeeper.Enabled && len(c.Zookeeper.Servers) == 0 {
		return fmt.Errorf("config: zookeeper enabled without servers")
	}
	for i, p := range c.Peers {
		if p.ID == "" || p.URL == "" {
			return fmt.Errorf("config: peer %d needs both id and url", i)
		}
	}
	return nil
}
