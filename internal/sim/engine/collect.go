package engine

import (
	"hexopolis.gg/internal/sim/engine/logic/fixedmath"
	"hexopolis.gg/internal/sim/engine/market"
)

// settlement is the outcome of settling one tile's accrued yield.
type settlement struct {
	Resources market.Amounts // net minted to the owner
	Funds     uint64         // net paid or credited to the owner
	Credited  bool           // funds went to the pull-payment ledger
}

func (s *settlement) zero() bool {
	return s == nil || (s.Funds == 0 && s.Resources.IsZero())
}

// settle runs the settle-before-mutate step every mutating tile operation
// starts with: elapsed production for every tower slot, plus the accrued
// shared balances, minus the tax share redistributed to the neighbors. A
// no-op on unowned tiles. Settling twice with no elapsed time yields zero
// the second time. Resources are minted here; funds are returned for the
// caller to deliver once the whole operation has succeeded.
func (e *Engine) settle(t *Tile, now int64) (*settlement, error) {
	if t == nil || t.Owner == "" {
		return nil, nil
	}
	if now < t.LastTouch {
		return nil, errTimeTravel
	}
	elapsed := uint64(now - t.LastTouch)

	produced, err := e.production(t, elapsed, now)
	if err != nil {
		return nil, err
	}

	var totalRes market.Amounts
	for r := 0; r < NumResources; r++ {
		totalRes[r], err = fixedmath.Add(produced[r], t.SharedResources[r])
		if err != nil {
			return nil, err
		}
	}
	totalFunds := t.SharedFunds

	t.SharedResources = market.Amounts{}
	t.SharedFunds = 0
	t.LastTouch = now

	var taxRes, remRes market.Amounts
	for r := 0; r < NumResources; r++ {
		taxRes[r] = fixedmath.ToTaxes(totalRes[r])
		remRes[r] = totalRes[r] - taxRes[r]
	}
	taxFunds := fixedmath.ToTaxes(totalFunds)
	remFunds := totalFunds - taxFunds

	// The owner's remainder mints before the tax shares divert: minting
	// drains the stash first, and the diverted shares must survive their own
	// settlement for later mints to claim.
	if !remRes.IsZero() {
		if err := e.market.Mint(e.self, t.Owner, remRes, now); err != nil {
			return nil, err
		}
	}
	if err := e.shareResources(t, taxRes, now); err != nil {
		return nil, err
	}
	if err := e.shareFunds(t, taxFunds); err != nil {
		return nil, err
	}

	return &settlement{Resources: remRes, Funds: remFunds}, nil
}

// deliver hands settled funds to the owner. Called only after every fallible
// step of the surrounding operation, because a synchronous payout hook
// cannot be rolled back. A self-collect pays out synchronously and degrades
// to the pull-payment ledger when the hook fails; collects triggered by
// someone else always go to the ledger.
func (e *Engine) deliver(owner, caller Address, amount uint64) (credited bool, err error) {
	if amount == 0 {
		return false, nil
	}
	if caller == owner {
		if perr := e.payout(owner, amount); perr == nil {
			return false, nil
		}
	}
	if err := e.credit(owner, amount); err != nil {
		return false, err
	}
	return true, nil
}

// production computes the elapsed yield for every tower slot: the global
// per-resource annual production, weighted by this tile's share of the
// global height-bonus score, time-scaled, with the seasonal bonus applied
// when the window is active at settlement time.
func (e *Engine) production(t *Tile, elapsed uint64, now int64) (market.Amounts, error) {
	var out market.Amounts
	if elapsed == 0 {
		return out, nil
	}
	season := e.inSeason(now)
	for r := 0; r < NumResources; r++ {
		if t.Scores[r] == 0 || e.stats[r].Score == 0 || e.stats[r].Production == 0 {
			continue
		}
		v, err := fixedmath.MulDiv(e.stats[r].Production, t.Scores[r], e.stats[r].Score)
		if err != nil {
			return market.Amounts{}, err
		}
		v, err = fixedmath.MulDiv(v, elapsed, uint64(e.tune.Economy.SecondsPerYear))
		if err != nil {
			return market.Amounts{}, err
		}
		if season {
			v, err = fixedmath.MulDiv(v, e.tune.Calendar.SeasonYieldBonusPPM, fixedmath.PPMOne)
			if err != nil {
				return market.Amounts{}, err
			}
		}
		out[r] = v
	}
	return out, nil
}

func (e *Engine) credit(to Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	v, err := fixedmath.Add(e.credits[to], amount)
	if err != nil {
		return err
	}
	e.credits[to] = v
	return nil
}

// collectTile is the public collect operation: settle the tile for its
// owner. Unowned tiles are a silent no-op; a missing record is E_NOT_FOUND.
func (e *Engine) collectTile(caller Address, c Coord, now int64) (*settlement, error) {
	t := e.tileAt(c)
	if t == nil {
		return nil, errNotFound
	}
	if t.Owner == "" {
		return nil, nil
	}
	if now < t.LastTouch {
		return nil, errTimeTravel
	}
	txn := e.begin(txnScope{
		Coords: append([]Coord{c}, neighborSlice(c)...),
		Addrs:  []Address{caller, t.Owner},
	})
	s, err := e.settle(t, now)
	if err != nil {
		txn.rollback()
		return nil, err
	}
	s.Credited, err = e.deliver(t.Owner, caller, s.Funds)
	if err != nil {
		txn.rollback()
		return nil, err
	}
	return s, nil
}

func neighborSlice(c Coord) []Coord {
	n := neighborsOf(c)
	return n[:]
}
