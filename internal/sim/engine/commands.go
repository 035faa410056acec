package engine

import (
	"hexopolis.gg/internal/protocol"
	"hexopolis.gg/internal/sim/engine/market"
)

// Command is one account's ACT batch, applied atomically per instant (the
// batch itself is not transactional: each instant commits or rolls back on
// its own). Resp receives the emitted events and is never closed by the
// engine.
type Command struct {
	Account Address
	Now     int64
	Req     protocol.ActMsg
	Resp    chan []protocol.Event
}

// Initialize is the one-shot world bootstrap: market init, token binding,
// genesis tile. Exposed for the server boot path and tests; E_ALREADY after
// the first call.
func (e *Engine) Initialize(caller Address, now int64) error {
	return e.initialize(caller, now)
}

// Replay re-applies one recorded instant outside the loop and returns the
// post-op state digest for journal verification. Never use on a running
// engine.
func (e *Engine) Replay(account Address, now int64, req protocol.InstantReq) string {
	e.applyInstant(account, now, req)
	return e.digestHex()
}

func (e *Engine) apply(cmd Command) []protocol.Event {
	events := make([]protocol.Event, 0, len(cmd.Req.Instants))
	for _, req := range cmd.Req.Instants {
		events = append(events, e.applyInstant(cmd.Account, cmd.Now, req)...)
	}
	return events
}

func (e *Engine) applyInstant(account Address, now int64, req protocol.InstantReq) []protocol.Event {
	var (
		extra []protocol.Event
		err   error
	)
	if !e.initialized {
		err = errUninitialized
	} else {
		extra, err = e.dispatch(account, now, req)
	}

	result := protocol.Event{
		"type": protocol.EvActionResult,
		"id":   req.ID,
		"ok":   err == nil,
	}
	code := ""
	if err != nil {
		code = codeFor(err)
		result["code"] = code
	}
	events := append([]protocol.Event{result}, extra...)

	e.opSeq++
	if e.opLogger != nil {
		entry := OpLogEntry{
			Seq:     e.opSeq,
			Now:     now,
			Account: string(account),
			Type:    req.Type,
			Req:     req,
			OK:      err == nil,
			Code:    code,
			Digest:  e.digestHex(),
		}
		if werr := e.opLogger.WriteOp(entry); werr != nil {
			e.log.Warnw("op log write failed", "seq", e.opSeq, "err", werr)
		}
	}
	return events
}

func (e *Engine) dispatch(account Address, now int64, req protocol.InstantReq) ([]protocol.Event, error) {
	c := Coord{X: req.X, Y: req.Y}
	switch req.Type {
	case protocol.InstBuyTile:
		res, err := e.buyTile(account, c, req.Payment, now)
		if err != nil {
			return nil, err
		}
		e.logTileBought(res)
		ev := []protocol.Event{{
			"type":       protocol.EvBought,
			"tile_id":    res.TileID,
			"x":          c.X,
			"y":          c.Y,
			"buyer":      string(account),
			"prev_owner": string(res.PrevOwner),
			"price":      res.Price,
			"refund":     res.Refund,
		}}
		if !res.Settlement.zero() {
			ev = append(ev, collectedEvent(res.TileID, res.PrevOwner, res.Settlement))
		}
		return ev, nil

	case protocol.InstBuildBlocks:
		res, err := e.buildBlocks(account, c, req.Blocks, now)
		if err != nil {
			return nil, err
		}
		ev := []protocol.Event{{
			"type":    protocol.EvBuilt,
			"tile_id": res.TileID,
			"owner":   string(account),
			"blocks":  res.Blocks,
			"height":  res.Height,
			"cost":    res.Cost,
		}}
		if !res.Settlement.zero() {
			ev = append(ev, collectedEvent(res.TileID, account, res.Settlement))
		}
		return ev, nil

	case protocol.InstCollect:
		st, err := e.collectTile(account, c, now)
		if err != nil {
			return nil, err
		}
		if st.zero() {
			return nil, nil
		}
		t := e.tileAt(c)
		return []protocol.Event{collectedEvent(t.ID, t.Owner, st)}, nil

	case protocol.InstRename:
		if err := e.renameTile(account, c, req.Name, now); err != nil {
			return nil, err
		}
		return []protocol.Event{{
			"type":    protocol.EvRenamed,
			"tile_id": e.tileAt(c).ID,
			"name":    req.Name,
		}}, nil

	case protocol.InstMarketBuy:
		spends, err := reqAmounts(req.Amounts)
		if err != nil {
			return nil, err
		}
		out, refund, err := e.marketBuy(account, spends, req.Payment, now)
		if err != nil {
			return nil, err
		}
		return []protocol.Event{{
			"type":    protocol.EvMarketBuy,
			"account": string(account),
			"spends":  spends,
			"out":     out,
			"refund":  refund,
		}}, nil

	case protocol.InstMarketSell:
		amounts, err := reqAmounts(req.Amounts)
		if err != nil {
			return nil, err
		}
		payout, err := e.marketSell(account, amounts, now)
		if err != nil {
			return nil, err
		}
		return []protocol.Event{{
			"type":    protocol.EvMarketSold,
			"account": string(account),
			"amounts": amounts,
			"payout":  payout,
		}}, nil

	case protocol.InstStash:
		amounts, err := reqAmounts(req.Amounts)
		if err != nil {
			return nil, err
		}
		return nil, e.stashResources(account, amounts, now)

	case protocol.InstTransfer:
		amounts, err := reqAmounts(req.Amounts)
		if err != nil {
			return nil, err
		}
		return nil, e.transferResources(account, Address(req.To), amounts, now)

	case protocol.InstCollectCredits:
		to := Address(req.To)
		if to == "" {
			to = account
		}
		amount, err := e.collectCredits(account, to, now)
		if err != nil {
			return nil, err
		}
		return []protocol.Event{{
			"type":    protocol.EvCredited,
			"account": string(account),
			"to":      string(to),
			"amount":  amount,
		}}, nil

	case protocol.InstCollectFees:
		to := Address(req.To)
		if to == "" {
			to = account
		}
		amount, err := e.collectFees(account, to, now)
		if err != nil {
			return nil, err
		}
		return []protocol.Event{{
			"type":   protocol.EvFeesCollected,
			"to":     string(to),
			"amount": amount,
		}}, nil

	case protocol.InstFund:
		if err := e.fund(account, req.Payment); err != nil {
			return nil, err
		}
		return []protocol.Event{{
			"type":    protocol.EvFunded,
			"account": string(account),
			"amount":  req.Payment,
		}}, nil
	}
	return nil, errInvalid
}

func collectedEvent(tileID string, owner Address, st *settlement) protocol.Event {
	return protocol.Event{
		"type":      protocol.EvCollected,
		"tile_id":   tileID,
		"owner":     string(owner),
		"resources": st.Resources,
		"funds":     st.Funds,
		"credited":  st.Credited,
	}
}

func reqAmounts(in []uint64) (market.Amounts, error) {
	var out market.Amounts
	if len(in) != NumResources {
		return out, errInvalid
	}
	copy(out[:], in)
	return out, nil
}

func (e *Engine) logTileBought(res *buyResult) {
	if e.opLogger == nil || res.PrevOwner != "" {
		return
	}
	t := e.tiles[e.tileCoords[res.TileID]]
	entry := TileBoughtEntry{
		Seq:    e.opSeq + 1,
		TileID: res.TileID,
		X:      t.Coord.X,
		Y:      t.Coord.Y,
		Buyer:  string(t.Owner),
		Price:  res.Price,
	}
	if err := e.opLogger.WriteTileBought(entry); err != nil {
		e.log.Warnw("tiles_bought write failed", "tile", res.TileID, "err", err)
	}
}
