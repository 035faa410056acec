package engine

import (
	"testing"
	"time"

	"hexopolis.gg/internal/protocol"
	"hexopolis.gg/internal/sim/tuning"
)

func TestApplyInstantUninitialized(t *testing.T) {
	e := New(tuning.Defaults(), creator)
	events := e.applyInstant(bob, offSeason(e.Tuning()), protocol.InstantReq{
		ID: "a1", Type: protocol.InstFund, Payment: 5,
	})
	if len(events) != 1 {
		t.Fatalf("events: %v", events)
	}
	if events[0]["ok"] != false || events[0]["code"] != protocol.ErrUninitialized {
		t.Fatalf("result: %v", events[0])
	}
}

func TestApplyInstantUnknownType(t *testing.T) {
	e, now := testEngine(t)
	events := e.applyInstant(bob, now, protocol.InstantReq{ID: "a1", Type: "WARP"})
	if events[0]["code"] != protocol.ErrInvalid {
		t.Fatalf("result: %v", events[0])
	}
}

func TestActBatchOverLoop(t *testing.T) {
	e, now := testEngine(t)
	go e.Run()
	defer e.Stop()

	feed := e.Subscribe("sess-1")

	resp := make(chan []protocol.Event, 1)
	e.Submit(Command{
		Account: bob,
		Now:     now,
		Req: protocol.ActMsg{Instants: []protocol.InstantReq{
			{ID: "f1", Type: protocol.InstFund, Payment: 100_000_000},
			{ID: "b1", Type: protocol.InstBuyTile, X: 0, Y: 1, Payment: 50_000_000},
		}},
		Resp: resp,
	})

	var events []protocol.Event
	select {
	case events = <-resp:
	case <-time.After(5 * time.Second):
		t.Fatal("loop never answered")
	}
	if len(events) < 3 {
		t.Fatalf("expected fund result, buy result and BOUGHT, got %v", events)
	}
	for _, ev := range events {
		if ev["type"] == protocol.EvActionResult && ev["ok"] != true {
			t.Fatalf("instant failed: %v", ev)
		}
	}

	select {
	case raw := <-feed:
		msg, err := protocol.DecodeBase(raw)
		if err != nil || msg.Type != protocol.TypeEvents {
			t.Fatalf("broadcast frame: %s", raw)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no broadcast")
	}

	v, err := e.DescribeTile(0, 1, now)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if v.Owner != string(bob) {
		t.Fatalf("owner %q", v.Owner)
	}
	acct := e.Account(bob)
	if acct.Wallet == 0 {
		t.Fatal("refund never reached the wallet")
	}
	e.Unsubscribe("sess-1")
}

func TestQueriesOnUnknownTile(t *testing.T) {
	e, now := testEngine(t)
	go e.Run()
	defer e.Stop()

	if _, err := e.DescribeTile(9, 9, now); err == nil {
		t.Fatal("expected not found")
	}
	if _, err := e.QuoteBuild(9, 9, []uint8{0}); err == nil {
		t.Fatal("expected not found")
	}
	mv := e.MarketInfo()
	if mv.Resources[0].Price == 0 {
		t.Fatal("market quote empty")
	}
	sv := e.StatsInfo(now)
	if sv.Tiles == 0 || sv.TilesBought != 1 {
		t.Fatalf("stats: %+v", sv)
	}
	got := e.TilesBought(0, 10)
	if len(got) != 1 {
		t.Fatalf("tiles bought page: %v", got)
	}
}

type memOpLog struct {
	ops    []OpLogEntry
	bought []TileBoughtEntry
}

func (m *memOpLog) WriteOp(e OpLogEntry) error              { m.ops = append(m.ops, e); return nil }
func (m *memOpLog) WriteTileBought(e TileBoughtEntry) error { m.bought = append(m.bought, e); return nil }

func TestOpLogCarriesDigests(t *testing.T) {
	e, now := testEngine(t)
	logger := &memOpLog{}
	e.SetOpLogger(logger)

	e.applyInstant(bob, now, protocol.InstantReq{ID: "f1", Type: protocol.InstFund, Payment: 100_000_000})
	e.applyInstant(bob, now, protocol.InstantReq{ID: "b1", Type: protocol.InstBuyTile, X: 0, Y: 1, Payment: 50_000_000})
	e.applyInstant(bob, now, protocol.InstantReq{ID: "b2", Type: protocol.InstBuyTile, X: 0, Y: 1, Payment: 50_000_000})

	if len(logger.ops) != 3 {
		t.Fatalf("ops logged: %d", len(logger.ops))
	}
	if !logger.ops[0].OK || !logger.ops[1].OK {
		t.Fatalf("ops: %+v", logger.ops[:2])
	}
	if logger.ops[2].OK || logger.ops[2].Code != protocol.ErrAlready {
		t.Fatalf("re-buy op: %+v", logger.ops[2])
	}
	// A failed op leaves the state digest where the previous op put it.
	if logger.ops[2].Digest != e.digestHex() {
		t.Fatal("digest after failed op drifted")
	}
	if len(logger.bought) != 1 || logger.bought[0].Buyer != string(bob) {
		t.Fatalf("tiles bought log: %+v", logger.bought)
	}
	if logger.ops[0].Seq != 1 || logger.ops[1].Seq != 2 {
		t.Fatalf("sequence numbers: %+v", logger.ops)
	}
}
