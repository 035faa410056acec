package engine

import "hexopolis.gg/internal/sim/engine/market"

// txnScope names everything a mutating operation may touch: the target tile
// with its ring of neighbors, and the accounts whose market balances, wallet
// or credit entries can change. Operations have a bounded footprint, so a
// failed one is undone by restoring these entries instead of copying the
// whole world.
type txnScope struct {
	Coords []Coord
	Addrs  []Address
}

type tileSnap struct {
	coord   Coord
	present bool
	tile    Tile // value copy; Tile has no pointer fields
}

type acctSnap struct {
	addr          Address
	wallet        uint64
	walletPresent bool
	credit        uint64
	creditPresent bool
}

type txn struct {
	e         *Engine
	tiles     []tileSnap
	accts     []acctSnap
	market    *market.Snapshot
	feePool   uint64
	stats     [NumResources]BlockStats
	boughtLen int
}

func (e *Engine) begin(scope txnScope) *txn {
	tx := &txn{
		e:         e,
		market:    e.market.SnapshotScoped(scope.Addrs...),
		feePool:   e.feePool,
		stats:     e.stats,
		boughtLen: len(e.tilesBought),
	}
	seen := map[Coord]bool{}
	for _, c := range scope.Coords {
		if seen[c] {
			continue
		}
		seen[c] = true
		snap := tileSnap{coord: c}
		if t, ok := e.tiles[c]; ok {
			snap.present = true
			snap.tile = *t
		}
		tx.tiles = append(tx.tiles, snap)
	}
	for _, a := range scope.Addrs {
		w, wok := e.wallets[a]
		cr, cok := e.credits[a]
		tx.accts = append(tx.accts, acctSnap{a, w, wok, cr, cok})
	}
	return tx
}

func (tx *txn) rollback() {
	e := tx.e
	e.market.Restore(tx.market)
	e.feePool = tx.feePool
	e.stats = tx.stats
	for _, s := range tx.tiles {
		if s.present {
			t := s.tile
			e.tiles[s.coord] = &t
		} else if t, ok := e.tiles[s.coord]; ok {
			delete(e.tileCoords, t.ID)
			delete(e.tiles, s.coord)
		}
	}
	for _, s := range tx.accts {
		if s.walletPresent {
			e.wallets[s.addr] = s.wallet
		} else {
			delete(e.wallets, s.addr)
		}
		if s.creditPresent {
			e.credits[s.addr] = s.credit
		} else {
			delete(e.credits, s.addr)
		}
	}
	e.tilesBought = e.tilesBought[:tx.boughtLen]
}
