package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"

	"rulereg/pkg/types"
)

// ZKMembership registers the local node in ZooKeeper and watches the live
// peer set. Each node owns an ephemeral znode under <root>/nodes named by its
// node id, with the node's base URL as data; the znode disappears with the
// session, so the children of /nodes are always the reachable membership.
type ZKMembership struct {
	conn     *zk.Conn
	rootPath string
	localID  types.NodeID
	addr     string // local base URL, e.g. "http://node1:8080"
}

// NewZKMembership connects to the given ensemble ("zk1:2181", "zk2:2181").
func NewZKMembership(servers []string, rootPath string, localID types.NodeID, addr string) (*ZKMembership, error) {
	conn, _, err := zk.Connect(servers, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("zk connect: %w", err)
	}
	return &ZKMembership{
		conn:     conn,
		rootPath: rootPath,
		localID:  localID,
		addr:     addr,
	}, nil
}

func (m *ZKMembership) Close() error {
	m.conn.Close()
	return nil
}

func (m *ZKMembership) ensurePath(path string) error {
	parts := strings.Split(path, "/")
	cur := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		cur = cur + "/" + p
		exists, _, err := m.conn.Exists(cur)
		if err != nil {
			return err
		}
		if !exists {
			_, err = m.conn.Create(cur, nil, 0, zk.WorldACL(zk.PermAll))
			if err != nil && err != zk.ErrNodeExists {
				return err
			}
		}
	}
	return nil
}

// RegisterSelf creates the ephemeral znode for the local node.
func (m *ZKMembership) RegisterSelf() error {
	if err := m.waitConnected(10 * time.Second); err != nil {
		return err
	}

	if err := m.ensurePath(m.rootPath + "/nodes"); err != nil {
		return fmt.Errorf("ensure nodes path: %w", err)
	}

	nodePath := fmt.Sprintf("%s/nodes/%s", m.rootPath, m.localID)

	_, err := m.conn.Create(nodePath, []byte(m.addr), zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
	if err != nil && err != zk.ErrNodeExists {
		return fmt.Errorf("create ephemeral node: %w", err)
	}

	slog.Info("zk registered node", "path", nodePath, "addr", m.addr)
	return nil
}

// Peers reads the current membership, excluding the local node.
func (m *ZKMembership) Peers() (map[types.NodeID]string, error) {
	children, _, err := m.conn.Children(m.rootPath + "/nodes")
	if err != nil {
		return nil, fmt.Errorf("zk children: %w", err)
	}

	peers := make(map[types.NodeID]string, len(children))
	for _, child := range children {
		id := types.NodeID(child)
		if id == m.localID {
			continue
		}
		data, _, err := m.conn.Get(m.rootPath + "/nodes/" + child)
		if err != nil {
			slog.Warn("zk read peer addr", "peer", child, "err", err)
			continue
		}
		peers[id] = string(data)
	}
	return peers, nil
}

// RunWatch watches <root>/nodes and calls onPeers with the fresh peer set on
// every membership change until ctx is cancelled.
func (m *ZKMembership) RunWatch(ctx context.Context, onPeers func(peers map[types.NodeID]string)) {
	go func() {
		for {
			_, _, ch, err := m.conn.ChildrenW(m.rootPath + "/nodes")
			if err != nil {
				slog.Warn("zk watch", "err", err)
				select {
				case <-time.After(2 * time.Second):
					continue
				case <-ctx.Done():
					return
				}
			}

			peers, err := m.Peers()
			if err != nil {
				slog.Warn("zk read peers", "err", err)
			} else {
				onPeers(peers)
			}

			select {
			case ev := <-ch:
				slog.Debug("zk membership event", "type", ev.Type.String())
				// loop and re-read the node list
			case <-ctx.Done():
				slog.Info("zk watch stopped")
				return
			}
		}
	}()
}

func (m *ZKMembership) waitConnected(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		st := m.conn.State()
		if st == zk.StateConnected || st == zk.StateHasSession {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("zk: not connected after %s, state=%v", timeout, st)
		}
		time.Sleep(200 * time.Millisecond)
	}
}
