package cache

import (
	"testing"

	"chromap/internal/model"
)

func TestUpdateThenQueryHits(t *testing.T) {
	c := New(4, 16)
	key := Fingerprint([]model.Minimizer{{Hash: 1}, {Hash: 2}}, 100)

	positive := []model.Candidate{{Position: 10, Count: 2}}
	slot := c.Update(key, positive, nil, 0)

	gotSlot, _, pos, _, hit := c.Query(key, nil, nil)
	if !hit {
		t.Fatalf("expected a cache hit after Update")
	}
	if gotSlot != slot {
		t.Fatalf("slot id changed between Update and Query: %d vs %d", slot, gotSlot)
	}
	if len(pos) != 1 || pos[0] != positive[0] {
		t.Fatalf("unexpected cached candidates: %v", pos)
	}
}

func TestQueryMissOnUnknownKey(t *testing.T) {
	c := New(4, 16)
	_, _, _, _, hit := c.Query(Fingerprint([]model.Minimizer{{Hash: 99}}, 50), nil, nil)
	if hit {
		t.Fatalf("expected a miss for a never-inserted key")
	}
}

func TestFingerprintIsOrderIndependent(t *testing.T) {
	a := Fingerprint([]model.Minimizer{{Hash: 1}, {Hash: 2}, {Hash: 3}}, 100)
	b := Fingerprint([]model.Minimizer{{Hash: 3}, {Hash: 1}, {Hash: 2}}, 100)
	if a != b {
		t.Fatalf("fingerprint should not depend on minimizer order: %d vs %d", a, b)
	}
}

func TestEvictionRespectsCapacity(t *testing.T) {
	c := New(1, 2)
	for i := uint64(0); i < 5; i++ {
		c.Update(i, nil, nil, 0)
	}
	s := c.shards[0]
	if s.ll.Len() > 2 {
		t.Fatalf("shard exceeded capacity: %d entries", s.ll.Len())
	}
	if _, _, _, _, hit := c.Query(0, nil, nil); hit {
		t.Fatalf("oldest entry should have been evicted")
	}
	if _, _, _, _, hit := c.Query(4, nil, nil); !hit {
		t.Fatalf("most recently inserted entry should still be present")
	}
}

func TestGetUpdateThresholdFullDuringWarmup(t *testing.T) {
	c := New(4, 16)
	got := c.GetUpdateThreshold(10000, 100, false, 0.5)
	if got != 10000 {
		t.Fatalf("expected full batch during warmup, got %d", got)
	}
}
