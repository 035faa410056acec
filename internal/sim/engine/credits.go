package engine

import "hexopolis.gg/internal/sim/engine/market"

const maxTileName = 64

// collectCredits drains the caller's pull-payment ledger entry to a chosen
// recipient. A failed payout hook restores the entry and surfaces the
// failure instead of silently re-crediting.
func (e *Engine) collectCredits(caller, to Address, _ int64) (uint64, error) {
	if to == "" {
		return 0, errInvalid
	}
	amount := e.credits[caller]
	if amount == 0 {
		return 0, nil
	}
	delete(e.credits, caller)
	if err := e.payout(to, amount); err != nil {
		e.credits[caller] = amount
		return 0, errTransferFailed
	}
	return amount, nil
}

// collectFees drains the global fee pool; instance creator only.
func (e *Engine) collectFees(caller, to Address, _ int64) (uint64, error) {
	if caller != e.creator {
		return 0, errRestricted
	}
	if to == "" {
		return 0, errInvalid
	}
	amount := e.feePool
	if amount == 0 {
		return 0, nil
	}
	e.feePool = 0
	if err := e.payout(to, amount); err != nil {
		e.feePool = amount
		return 0, errTransferFailed
	}
	return amount, nil
}

// fund deposits native currency into the caller's engine wallet. This is the
// only inflow; everything else just moves native currency around.
func (e *Engine) fund(caller Address, amount uint64) error {
	if amount == 0 {
		return errInvalid
	}
	return e.creditWallet(caller, amount)
}

func (e *Engine) renameTile(caller Address, c Coord, name string, now int64) error {
	t := e.tileAt(c)
	if t == nil {
		return errNotFound
	}
	if t.Owner != caller {
		return errRestricted
	}
	if len(name) > maxTileName {
		return errInvalid
	}
	if now < t.LastTouch {
		return errTimeTravel
	}
	t.Name = name
	return nil
}

// marketBuy spends attached native currency on the bonded curves. The wallet
// funds the payment up front; the market's own refund of the unspent
// remainder flows straight back into the wallet.
func (e *Engine) marketBuy(caller Address, spends market.Amounts, payment uint64, now int64) (market.Amounts, uint64, error) {
	if e.wallets[caller] < payment {
		return market.Amounts{}, 0, errInsufficient
	}
	snap := e.market.SnapshotScoped(caller)
	e.wallets[caller] -= payment
	out, refund, err := e.market.Buy(caller, spends, payment, now)
	if err != nil {
		e.wallets[caller] += payment
		return market.Amounts{}, 0, err
	}
	if refund > 0 {
		if cerr := e.creditWallet(caller, refund); cerr != nil {
			e.market.Restore(snap)
			e.wallets[caller] += payment
			return market.Amounts{}, 0, cerr
		}
	}
	return out, refund, nil
}

// marketSell sells resource balances back to the curves and wallets the
// native payout.
func (e *Engine) marketSell(caller Address, amounts market.Amounts, now int64) (uint64, error) {
	snap := e.market.SnapshotScoped(caller)
	payout, err := e.market.Sell(caller, amounts, now)
	if err != nil {
		return 0, err
	}
	if err := e.creditWallet(caller, payout); err != nil {
		e.market.Restore(snap)
		return 0, err
	}
	return payout, nil
}

func (e *Engine) stashResources(caller Address, amounts market.Amounts, now int64) error {
	if amounts.IsZero() {
		return errInvalid
	}
	return e.market.Stash(e.self, caller, amounts, now)
}

func (e *Engine) transferResources(caller, to Address, amounts market.Amounts, now int64) error {
	if to == "" || to == caller {
		return errInvalid
	}
	if amounts.IsZero() {
		return errInvalid
	}
	return e.market.Transfer(caller, to, amounts, now)
}
