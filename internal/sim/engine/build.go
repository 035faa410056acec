package engine

import (
	"hexopolis.gg/internal/sim/engine/logic/fixedmath"
	"hexopolis.gg/internal/sim/engine/market"
)

type buildResult struct {
	TileID     string
	Blocks     []uint8
	Cost       market.Amounts
	Height     int // tower height after the append
	Settlement *settlement
}

// buildBlocks appends a scanned fragment on top of the caller-owned tile's
// tower, paying the resource cost out of the caller's balances into the
// market stash. The tile settles first, so the cost check runs against the
// post-collect balances. Either everything applies or nothing does.
func (e *Engine) buildBlocks(caller Address, c Coord, raw []byte, now int64) (*buildResult, error) {
	t := e.tileAt(c)
	if t == nil {
		return nil, errNotFound
	}
	if t.Owner != caller {
		return nil, errRestricted
	}
	if now < t.LastTouch {
		return nil, errTimeTravel
	}
	blocks, err := e.scanFragment(t, raw)
	if err != nil {
		return nil, err
	}

	txn := e.begin(txnScope{
		Coords: append([]Coord{c}, neighborSlice(c)...),
		Addrs:  []Address{caller},
	})
	fail := func(err error) (*buildResult, error) {
		txn.rollback()
		return nil, err
	}

	st, err := e.settle(t, now)
	if err != nil {
		return fail(err)
	}

	cost, err := e.buildCost(t, blocks)
	if err != nil {
		return fail(err)
	}
	if err := e.market.Stash(e.self, caller, cost, now); err != nil {
		return fail(err)
	}

	base := t.Height()
	t.Tower = t.Tower.AssignRange(blocks, base, len(blocks))
	for i, b := range blocks {
		r := market.Resource(b)
		bonus := e.heightBonus[base+i]
		t.Scores[r], err = fixedmath.Add(t.Scores[r], bonus)
		if err != nil {
			return fail(err)
		}
		e.stats[r].Count++
		e.stats[r].Score, err = fixedmath.Add(e.stats[r].Score, bonus)
		if err != nil {
			return fail(err)
		}
	}

	// Refresh the sqrt production curve for every kind that grew, seeding
	// Newton with the previous estimate.
	var placed [NumResources]bool
	for _, b := range blocks {
		placed[b] = true
	}
	for r := 0; r < NumResources; r++ {
		if !placed[r] {
			continue
		}
		sq := fixedmath.EstSqrtPPM(e.stats[r].Count, e.stats[r].SqrtHintPPM)
		e.stats[r].SqrtHintPPM = sq
		e.stats[r].Production, err = fixedmath.MulDiv(e.tune.Economy.BaseProductionPPM, sq, fixedmath.PPMOne)
		if err != nil {
			return fail(err)
		}
	}

	// The tower grew: every neighbor's cached clout total gains one unit per
	// placed block.
	for _, nc := range neighborsOf(c) {
		if n := e.tileAt(nc); n != nil {
			n.NeighborClout += uint8(len(blocks))
		}
	}
	if st != nil && st.Funds > 0 {
		st.Credited, err = e.deliver(t.Owner, caller, st.Funds)
		if err != nil {
			return fail(err)
		}
	}

	return &buildResult{
		TileID:     t.ID,
		Blocks:     blocks,
		Cost:       cost,
		Height:     t.Height(),
		Settlement: st,
	}, nil
}
