package engine

import (
	"hexopolis.gg/internal/protocol"
	"hexopolis.gg/internal/sim/engine/market"
)

// Read-model views served over the query channel. Everything here is a value
// copy assembled on the loop goroutine; callers never see live state.

type TileView struct {
	ID              string         `json:"id"`
	X               int            `json:"x"`
	Y               int            `json:"y"`
	Owner           string         `json:"owner,omitempty"`
	Name            string         `json:"name,omitempty"`
	Blocks          []uint8        `json:"blocks"`
	Height          int            `json:"height"`
	TimesBought     uint32         `json:"times_bought"`
	LastTouch       int64          `json:"last_touch"`
	Price           uint64         `json:"price"`
	SharedResources market.Amounts `json:"shared_resources"`
	SharedFunds     uint64         `json:"shared_funds"`
}

type MarketView struct {
	Resources [NumResources]ResourceQuote `json:"resources"`
}

type ResourceQuote struct {
	Symbol         string `json:"symbol"`
	Price          uint64 `json:"price"`
	PriceYesterday uint64 `json:"price_yesterday"`
	Supply         uint64 `json:"supply"`
	Funds          uint64 `json:"funds"`
	Stash          uint64 `json:"stash"`
}

type StatsView struct {
	Stats       [NumResources]BlockStats `json:"stats"`
	FeePool     uint64                   `json:"fee_pool"`
	Tiles       int                      `json:"tiles"`
	TilesBought int                      `json:"tiles_bought"`
	SeasonIndex int                      `json:"season_index"`
	InSeason    bool                     `json:"in_season"`
	OpSeq       uint64                   `json:"op_seq"`
}

type AccountView struct {
	Address  string         `json:"address"`
	Wallet   uint64         `json:"wallet"`
	Credits  uint64         `json:"credits"`
	Balances market.Amounts `json:"balances"`
}

// DescribeTile prices and describes one tile as of now. E_NOT_FOUND for
// coordinates no purchase has ever reached.
func (e *Engine) DescribeTile(x, y int, now int64) (TileView, error) {
	var (
		v   TileView
		err error
	)
	e.do(func() {
		t := e.tileAt(Coord{x, y})
		if t == nil {
			err = errNotFound
			return
		}
		price, perr := e.fullPrice(t, now)
		if perr != nil {
			err = perr
			return
		}
		h := t.Height()
		blocks := make([]uint8, h)
		for i := 0; i < h; i++ {
			blocks[i] = t.Tower.Unpack(i)
		}
		v = TileView{
			ID:              t.ID,
			X:               x,
			Y:               y,
			Owner:           string(t.Owner),
			Name:            t.Name,
			Blocks:          blocks,
			Height:          h,
			TimesBought:     t.TimesBought,
			LastTouch:       t.LastTouch,
			Price:           price,
			SharedResources: t.SharedResources,
			SharedFunds:     t.SharedFunds,
		}
	})
	return v, err
}

// QuoteBuild prices a fragment on top of a tile without mutating anything.
func (e *Engine) QuoteBuild(x, y int, raw []uint8) (market.Amounts, error) {
	var (
		cost market.Amounts
		err  error
	)
	e.do(func() {
		t := e.tileAt(Coord{x, y})
		if t == nil {
			err = errNotFound
			return
		}
		blocks, serr := e.scanFragment(t, raw)
		if serr != nil {
			err = serr
			return
		}
		cost, err = e.buildCost(t, blocks)
	})
	return cost, err
}

func (e *Engine) MarketInfo() MarketView {
	var v MarketView
	e.do(func() {
		for r := market.Resource(0); r < NumResources; r++ {
			v.Resources[r] = ResourceQuote{
				Symbol:         r.String(),
				Price:          e.market.Price(r),
				PriceYesterday: e.market.PriceYesterday(r),
				Supply:         e.market.Supply(r),
				Funds:          e.market.Funds(r),
				Stash:          e.market.StashOf(r),
			}
		}
	})
	return v
}

func (e *Engine) StatsInfo(now int64) StatsView {
	var v StatsView
	e.do(func() {
		v = StatsView{
			Stats:       e.stats,
			FeePool:     e.feePool,
			Tiles:       len(e.tiles),
			TilesBought: len(e.tilesBought),
			SeasonIndex: e.seasonIndex(now),
			InSeason:    e.inSeason(now),
			OpSeq:       e.opSeq,
		}
	})
	return v
}

func (e *Engine) Account(addr Address) AccountView {
	var v AccountView
	e.do(func() {
		v = AccountView{
			Address:  string(addr),
			Wallet:   e.wallets[addr],
			Credits:  e.credits[addr],
			Balances: e.market.BalancesOf(addr),
		}
	})
	return v
}

// TilesBought pages through the ordered first-purchase log.
func (e *Engine) TilesBought(offset, limit int) []string {
	var out []string
	e.do(func() {
		if offset < 0 || offset >= len(e.tilesBought) || limit <= 0 {
			return
		}
		end := offset + limit
		if end > len(e.tilesBought) {
			end = len(e.tilesBought)
		}
		out = append([]string(nil), e.tilesBought[offset:end]...)
	})
	return out
}

func (e *Engine) WorldParams() protocol.WorldParams {
	return protocol.WorldParams{
		InstanceID:    e.tune.InstanceID,
		NumResources:  NumResources,
		MaxHeight:     MaxHeight,
		CalendarStart: e.tune.Calendar.StartUnix,
		WeekLengthS:   e.tune.Calendar.WeekLengthS,
		TotalWeeks:    e.tune.Calendar.TotalWeeks,
		TuningDigest:  e.tune.Digest(),
	}
}

// Digest runs on the loop so it observes a settled state.
func (e *Engine) Digest() string {
	var d string
	e.do(func() { d = e.digestHex() })
	return d
}

// ExportState captures a snapshot-ready copy of the full state.
func (e *Engine) ExportState() StateV1 {
	var s StateV1
	e.do(func() { s = e.exportState() })
	return s
}

// ImportState replaces the state wholesale. Boot-time only, before Run.
func (e *Engine) ImportState(s StateV1) error {
	return e.importState(s)
}
