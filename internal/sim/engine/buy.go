package engine

import "hexopolis.gg/internal/sim/engine/logic/fixedmath"

type buyResult struct {
	TileID     string
	Price      uint64
	Refund     uint64
	PrevOwner  Address
	Settlement *settlement
}

// buyTile transfers a tile to the caller at its current full price. The tile
// settles for the previous owner first, then the price is evaluated against
// the attached payment, so affordability is only known after the implicit
// collect. Any step failing restores the pre-call state exactly.
func (e *Engine) buyTile(caller Address, c Coord, payment uint64, now int64) (*buyResult, error) {
	t := e.tileAt(c)
	if t == nil {
		return nil, errNotFound
	}
	if t.Owner == caller {
		return nil, errAlready
	}
	if now < t.LastTouch {
		return nil, errTimeTravel
	}
	if e.wallets[caller] < payment {
		return nil, errInsufficient
	}

	prevOwner := t.Owner
	txn := e.begin(txnScope{
		Coords: append([]Coord{c}, neighborSlice(c)...),
		Addrs:  []Address{caller, prevOwner},
	})
	fail := func(err error) (*buyResult, error) {
		txn.rollback()
		return nil, err
	}

	e.wallets[caller] -= payment

	st, err := e.settle(t, now)
	if err != nil {
		return fail(err)
	}

	price, err := e.fullPrice(t, now)
	if err != nil {
		return fail(err)
	}
	if payment < price {
		return fail(errInsufficient)
	}

	mult, err := fixedmath.MulDiv(t.PriceMultiplierPPM, e.tune.Economy.PurchaseMarkupPPM, fixedmath.PPMOne)
	if err != nil {
		return fail(err)
	}
	t.Owner = caller
	t.TimesBought++
	t.PriceMultiplierPPM = mult
	// settle only touches owned tiles, so a first purchase must advance the
	// clock here or the yield timer would still read zero.
	t.LastTouch = now

	// Ownership makes the frontier grow: every neighbor record now exists.
	for _, nc := range neighborsOf(c) {
		e.materialize(nc)
	}
	if prevOwner == "" {
		e.tilesBought = append(e.tilesBought, t.ID)
	}

	taxes := fixedmath.ToTaxes(price)
	proceeds := price - taxes
	if prevOwner == "" {
		// No seller: the whole price, tax share included, sinks into the
		// fee pool.
		e.feePool, err = fixedmath.Add(e.feePool, price)
		if err != nil {
			return fail(err)
		}
		proceeds = 0
	} else if err := e.shareFunds(t, taxes); err != nil {
		return fail(err)
	}

	refund := payment - price
	if refund > 0 {
		if err := e.creditWallet(caller, refund); err != nil {
			return fail(err)
		}
	}

	// Fund delivery comes last; a synchronous payout cannot be undone.
	if st != nil && st.Funds > 0 {
		st.Credited, err = e.deliver(prevOwner, caller, st.Funds)
		if err != nil {
			return fail(err)
		}
	}
	if proceeds > 0 {
		if perr := e.payout(prevOwner, proceeds); perr != nil {
			if err := e.credit(prevOwner, proceeds); err != nil {
				return fail(err)
			}
		}
	}

	return &buyResult{
		TileID:     t.ID,
		Price:      price,
		Refund:     refund,
		PrevOwner:  prevOwner,
		Settlement: st,
	}, nil
}
