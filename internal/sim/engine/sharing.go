package engine

import (
	"hexopolis.gg/internal/sim/engine/logic/fixedmath"
	"hexopolis.gg/internal/sim/engine/market"
)

// cloutFraction is the PPM fraction of a shared amount owed to one neighbor:
// (liveNeighborHeight+1) * PPM / cachedCloutTotal. The denominator is the
// sharing tile's cached total and may lag recent neighbor height changes
// until the next triggering update; that lag is a behavioral contract, so it
// is never recomputed live here.
func cloutFraction(neighborHeight int, cachedClout uint8) uint64 {
	if cachedClout == 0 {
		return 0
	}
	return uint64(neighborHeight+1) * fixedmath.PPMOne / uint64(cachedClout)
}

// shareFunds distributes a fund amount from tile t across its 6 neighbors,
// clout-weighted. Shares owed to unowned neighbors, and the truncation dust
// the per-neighbor flooring leaves behind, divert to the global fee pool so
// no native currency ever leaks.
func (e *Engine) shareFunds(t *Tile, amount uint64) error {
	if amount == 0 {
		return nil
	}
	distributed := uint64(0)
	for _, nc := range neighborsOf(t.Coord) {
		n := e.tileAt(nc)
		h := 0
		if n != nil {
			h = n.Height()
		}
		share, err := fixedmath.MulDiv(amount, cloutFraction(h, t.NeighborClout), fixedmath.PPMOne)
		if err != nil {
			return err
		}
		if share == 0 {
			continue
		}
		if n == nil || n.Owner == "" {
			e.feePool += share
		} else {
			n.SharedFunds, err = fixedmath.Add(n.SharedFunds, share)
			if err != nil {
				return err
			}
		}
		distributed += share
	}
	if distributed < amount {
		e.feePool += amount - distributed
	}
	return nil
}

// shareResources distributes per-resource amounts the same way. Shares owed
// to unowned neighbors (plus flooring dust) are minted straight into the
// market stash: the diverted production stays accounted and later mints
// drain it back out without inflating supply.
func (e *Engine) shareResources(t *Tile, amounts market.Amounts, now int64) error {
	if amounts.IsZero() {
		return nil
	}
	var diverted market.Amounts
	for r := 0; r < NumResources; r++ {
		if amounts[r] == 0 {
			continue
		}
		distributed := uint64(0)
		for _, nc := range neighborsOf(t.Coord) {
			n := e.tileAt(nc)
			h := 0
			if n != nil {
				h = n.Height()
			}
			share, err := fixedmath.MulDiv(amounts[r], cloutFraction(h, t.NeighborClout), fixedmath.PPMOne)
			if err != nil {
				return err
			}
			if share == 0 {
				continue
			}
			if n == nil || n.Owner == "" {
				diverted[r] += share
			} else {
				n.SharedResources[r], err = fixedmath.Add(n.SharedResources[r], share)
				if err != nil {
					return err
				}
			}
			distributed += share
		}
		diverted[r] += amounts[r] - distributed
	}
	if diverted.IsZero() {
		return nil
	}
	return e.market.MintToStash(e.self, diverted, now)
}
