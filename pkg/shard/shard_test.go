package shard

import (
	"context"
	"errors"
	"testing"

	"rulereg/pkg/cluster"
	"rulereg/pkg/record"
	"rulereg/pkg/regerrors"
	"rulereg/pkg/types"
)

type stubHandle struct {
	id types.NodeID
}

func (s *stubHandle) Identity() types.NodeID { return s.id }
func (s *stubHandle) IsAvailable() bool      { return true }
func (s *stubHandle) Send(context.Context, *record.Record) error {
	return nil
}
func (s *stubHandle) Receive(context.Context) ([]*record.Record, error) {
	return nil, nil
}

var _ cluster.NodeHandle = (*stubHandle)(nil)

func TestRouter_AssignShardIsPureAndBounded(t *testing.T) {
	r := NewRouter(4)

	first := r.AssignShard("x")
	for i := 0; i < 100; i++ {
		got := r.AssignShard("x")
		if got != first {
			t.Fatalf("call %d returned %d, first call returned %d", i, got, first)
		}
		if int(got) >= 4 {
			t.Fatalf("shard %d out of range [0,4)", got)
		}
	}
}

func TestRouter_DistinctRoutersAgree(t *testing.T) {
	a := NewRouter(16)
	b := NewRouter(16)
	for _, key := range []string{"statute/1", "statute/2", "x", ""} {
		if a.AssignShard(key) != b.AssignShard(key) {
			t.Fatalf("routers disagree on %q", key)
		}
	}
}

func TestRouter_ZeroCountPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for zero shard count")
		}
	}()
	NewRouter(0)
}

func TestMap_AssignAndRoute(t *testing.T) {
	r := NewRouter(2)
	m := NewMap(r)

	n0 := &stubHandle{id: "node-0"}
	n1 := &stubHandle{id: "node-1"}
	if err := m.Assign(0, n0); err != nil {
		t.Fatalf("assign shard 0: %v", err)
	}
	if err := m.Assign(1, n1); err != nil {
		t.Fatalf("assign shard 1: %v", err)
	}

	h, err := m.GetShard("some-key")
	if err != nil {
		t.Fatalf("GetShard failed: %v", err)
	}
	want := m.owners[r.AssignShard("some-key")]
	if h != want {
		t.Fatalf("routed to %s, expected %s", h.Identity(), want.Identity())
	}
}

func TestMap_RoutingGapIsAnError(t *testing.T) {
	m := NewMap(NewRouter(2))

	_, err := m.GetShard("key")
	if !errors.Is(err, regerrors.ErrRoutingGap) {
		t.Fatalf("expected ErrRoutingGap, got %v", err)
	}

	if err := m.Assign(0, &stubHandle{id: "node-0"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	m.Unassign(0)
	if _, err := m.Handle(0); !errors.Is(err, regerrors.ErrRoutingGap) {
		t.Fatalf("expected ErrRoutingGap after unassign, got %v", err)
	}
}

func TestMap_RejectsOutOfRangeShard(t *testing.T) {
	m := NewMap(NewRouter(2))
	if err := m.Assign(5, &stubHandle{id: "node-0"}); err == nil {
		t.Fatal("expected error assigning shard outside the space")
	}
}
