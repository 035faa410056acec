package engine

import (
	"testing"

	"hexopolis.gg/internal/protocol"
	"hexopolis.gg/internal/sim/tuning"
)

// A second engine fed the journal (same tuning, same init time) must walk
// through the exact digest sequence the first one recorded, including ops
// that failed.
func TestReplayReproducesDigests(t *testing.T) {
	tune := tuning.Defaults()
	initNow := offSeason(tune)

	live := New(tune, creator)
	if err := live.initialize(creator, initNow); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	journal := &memOpLog{}
	live.SetOpLogger(journal)

	script := []struct {
		account Address
		dt      int64
		req     protocol.InstantReq
	}{
		{bob, 0, protocol.InstantReq{ID: "f1", Type: protocol.InstFund, Payment: 200_000_000}},
		{carol, 0, protocol.InstantReq{ID: "f2", Type: protocol.InstFund, Payment: 200_000_000}},
		{bob, 10, protocol.InstantReq{ID: "b1", Type: protocol.InstBuyTile, X: 0, Y: 1, Payment: 50_000_000}},
		{bob, 20, protocol.InstantReq{ID: "t1", Type: protocol.InstBuildBlocks, X: 0, Y: 1, Blocks: []uint8{0, 1, 2}}},
		{carol, 30, protocol.InstantReq{ID: "b2", Type: protocol.InstBuyTile, X: 0, Y: 2, Payment: 50_000_000}},
		{carol, 30, protocol.InstantReq{ID: "bad", Type: protocol.InstBuyTile, X: 0, Y: 2, Payment: 1}},
		{carol, 3600, protocol.InstantReq{ID: "c1", Type: protocol.InstCollect, X: 0, Y: 2}},
		{bob, 7200, protocol.InstantReq{ID: "m1", Type: protocol.InstMarketBuy, Payment: 3_000_000, Amounts: []uint64{1_000_000, 0, 0}}},
	}
	for _, s := range script {
		live.applyInstant(s.account, initNow+s.dt, s.req)
	}
	if len(journal.ops) != len(script) {
		t.Fatalf("journaled ops: got %d, want %d", len(journal.ops), len(script))
	}
	if journal.ops[5].OK {
		t.Fatal("underpaid buy should have failed")
	}

	fresh := New(tune, creator)
	if err := fresh.initialize(creator, initNow); err != nil {
		t.Fatalf("initialize fresh: %v", err)
	}
	for i, entry := range journal.ops {
		got := fresh.Replay(Address(entry.Account), entry.Now, entry.Req)
		if got != entry.Digest {
			t.Fatalf("digest diverged at seq %d (%s): got %s, want %s", entry.Seq, entry.Type, got, entry.Digest)
		}
		if fresh.opSeq != uint64(i+1) {
			t.Fatalf("replayed seq: got %d, want %d", fresh.opSeq, i+1)
		}
	}
}

// Replaying on top of an exported/imported state continues the same digest
// chain, which is what cmd/replay does from a snapshot.
func TestReplayFromExportedState(t *testing.T) {
	tune := tuning.Defaults()
	initNow := offSeason(tune)

	live := New(tune, creator)
	if err := live.initialize(creator, initNow); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	journal := &memOpLog{}
	live.SetOpLogger(journal)

	live.applyInstant(bob, initNow, protocol.InstantReq{ID: "f1", Type: protocol.InstFund, Payment: 100_000_000})
	base := live.exportState()
	live.applyInstant(bob, initNow+5, protocol.InstantReq{ID: "b1", Type: protocol.InstBuyTile, X: 1, Y: 0, Payment: 50_000_000})
	live.applyInstant(bob, initNow+9, protocol.InstantReq{ID: "r1", Type: protocol.InstRename, X: 1, Y: 0, Name: "docks"})

	fresh := New(tune, creator)
	if err := fresh.importState(base); err != nil {
		t.Fatalf("import: %v", err)
	}
	for _, entry := range journal.ops {
		if entry.Seq <= base.OpSeq {
			continue
		}
		got := fresh.Replay(Address(entry.Account), entry.Now, entry.Req)
		if got != entry.Digest {
			t.Fatalf("digest diverged at seq %d: got %s, want %s", entry.Seq, got, entry.Digest)
		}
	}
	if fresh.opSeq != live.opSeq {
		t.Fatalf("op seq: got %d, want %d", fresh.opSeq, live.opSeq)
	}
}
