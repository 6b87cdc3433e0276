package config

import (
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero shard count", func(c *Config) { c.Sharding.ShardCount = 0 }},
		{"negative shard count", func(c *Config) { c.Sharding.ShardCount = -4 }},
		{"zero fanout", func(c *Config) { c.Gossip.Fanout = 0 }},
		{"zero interval", func(c *Config) { c.Gossip.Interval = 0 }},
		{"negative batch", func(c *Config) { c.Gossip.MaxBatchSize = -1 }},
		{"zero cross-shard timeout", func(c *Config) { c.Sharding.CrossShardTimeout = 0 }},
		{"unknown strategy", func(c *Config) { c.Conflict.Strategy = "newest" }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"zk without servers", func(c *Config) { c.Zookeeper.Enabled = true; c.Zookeeper.Servers = nil }},
		{"peer missing url", func(c *Config) { c.Peers = []PeerConfig{{ID: "n2"}} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected %s to fail validation", tc.name)
			}
		})
	}
}

func TestValidate_AcceptsAllStrategies(t *testing.T) {
	for _, s := range []string{"last-write-wins", "most-recent-version", "manual"} {
		cfg := Default()
		cfg.Conflict.Strategy = s
		cfg.Gossip.SyncTimeout = 3 * time.Second
		if err := cfg.Validate(); err != nil {
			t.Fatalf("strategy %s rejected: %v", s, err)
		}
	}
}
