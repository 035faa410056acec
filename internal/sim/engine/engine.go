// Package engine is the authoritative Hexopolis state machine: an implicit
// infinite hex grid of tiles, block towers, neighbor tax redistribution, and
// the bonded resource market. All state is owned by a single loop goroutine;
// every command either fully applies or fails with zero observable mutation.
package engine

import (
	"go.uber.org/zap"

	"hexopolis.gg/internal/protocol"
	"hexopolis.gg/internal/sim/engine/logic/fixedmath"
	"hexopolis.gg/internal/sim/engine/logic/tower"
	"hexopolis.gg/internal/sim/engine/market"
	"hexopolis.gg/internal/sim/engine/market/tokenproxy"
	"hexopolis.gg/internal/sim/tuning"
)

type Address = market.Address

const (
	MaxHeight    = tower.MaxHeight
	NumResources = market.NumResources
	NumNeighbors = fixedmath.NumNeighbors
)

// Tile is one cell of the sparse grid. Records are created lazily, mutated
// forever, never deleted.
type Tile struct {
	Coord Coord
	ID    string

	Owner       Address // "" = unowned
	Tower       tower.Tower
	TimesBought uint32
	LastTouch   int64

	// Monotonically non-decreasing purchase markup accumulator, PPM.
	PriceMultiplierPPM uint64

	// Untaxed balances accrued from neighbor sharing, settled on collect.
	SharedResources market.Amounts
	SharedFunds     uint64

	// Height-bonus-weighted score per resource (PPM sums over own blocks).
	Scores market.Amounts

	// Cached sum of (height+1) across the 6 neighbors; unmaterialized
	// neighbors count as height 0. Updated on neighbor height changes only,
	// never recomputed live at share time (behavioral contract).
	NeighborClout uint8

	Name string
}

func (t *Tile) Height() int { return t.Tower.Height() }

// BlockStats is the process-wide, monotone per-resource build tally.
type BlockStats struct {
	Count uint64
	// Sum of height-bonus weights across every built block (PPM).
	Score uint64
	// Smoothed annual production in token base units; a sqrt curve of Count
	// so marginal production grows sub-linearly.
	Production uint64
	// Previous sqrt estimate, used to seed the next Newton refinement.
	SqrtHintPPM uint64
}

// PayoutFunc delivers native currency to a recipient. The default credits
// the recipient's engine wallet and never fails; tests swap in failing hooks
// to exercise the pull-payment fallback and E_TRANSFER_FAILED paths.
type PayoutFunc func(to Address, amount uint64) error

// OpLogger records applied commands for the read-model index (may be nil).
type OpLogger interface {
	WriteOp(entry OpLogEntry) error
	WriteTileBought(entry TileBoughtEntry) error
}

type OpLogEntry struct {
	Seq     uint64              `json:"seq"`
	Now     int64               `json:"now"`
	Account string              `json:"account"`
	Type    string              `json:"type"`
	Req     protocol.InstantReq `json:"req"`
	OK      bool                `json:"ok"`
	Code    string              `json:"code,omitempty"`
	Digest  string              `json:"digest"`
}

type TileBoughtEntry struct {
	Seq    uint64 `json:"seq"`
	TileID string `json:"tile_id"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Buyer  string `json:"buyer"`
	Price  uint64 `json:"price"`
}

type Engine struct {
	tune    tuning.Tuning
	creator Address
	// The engine's own market identity; it is the market creator and the
	// sole minting authority.
	self Address

	initialized bool

	market *market.Market
	tokens [NumResources]*tokenproxy.Token

	tiles       map[Coord]*Tile
	tilesBought []string
	tileCoords  map[string]Coord

	stats [NumResources]BlockStats

	feePool uint64
	credits map[Address]uint64
	wallets map[Address]uint64

	// Fixed lookup tables over [0, MaxHeight), built once from tuning.
	heightPremium [MaxHeight]uint64
	heightBonus   [MaxHeight]uint64

	payout   PayoutFunc
	opLogger OpLogger
	opSeq    uint64
	log      *zap.SugaredLogger

	// Loop plumbing.
	inbox   chan Command
	queries chan queryReq
	subs    map[string]chan []byte
	stop    chan struct{}
}

func New(tune tuning.Tuning, creator Address) *Engine {
	e := &Engine{
		tune:       tune,
		creator:    creator,
		self:       Address("CITY_" + tune.InstanceID),
		market:     market.New(tune.Market.ConnectorWeightPPM),
		tiles:      map[Coord]*Tile{},
		tileCoords: map[string]Coord{},
		credits:    map[Address]uint64{},
		wallets:    map[Address]uint64{},
		inbox:      make(chan Command, 256),
		queries:    make(chan queryReq, 64),
		subs:       map[string]chan []byte{},
		stop:       make(chan struct{}),
	}
	e.payout = e.creditWallet
	e.log = zap.NewNop().Sugar()
	e.buildCurveTables()
	return e
}

// SetPayout swaps the native-currency delivery hook. Must be called before
// the loop starts.
func (e *Engine) SetPayout(p PayoutFunc) {
	if p != nil {
		e.payout = p
	}
}

func (e *Engine) SetOpLogger(l OpLogger) { e.opLogger = l }

// SetLogger swaps the no-op default. Must be called before the loop starts.
func (e *Engine) SetLogger(l *zap.SugaredLogger) {
	if l != nil {
		e.log = l
	}
}

func (e *Engine) Tuning() tuning.Tuning { return e.tune }

func (e *Engine) buildCurveTables() {
	hp := uint64(fixedmath.PPMOne)
	hb := uint64(fixedmath.PPMOne)
	for h := 0; h < MaxHeight; h++ {
		e.heightPremium[h] = hp
		e.heightBonus[h] = hb
		next, err := fixedmath.MulDiv(hp, e.tune.Economy.HeightPremiumBasePPM, fixedmath.PPMOne)
		if err == nil {
			hp = next
		}
		next, err = fixedmath.MulDiv(hb, e.tune.Economy.HeightBonusBasePPM, fixedmath.PPMOne)
		if err == nil {
			hb = next
		}
	}
}

// initialize is the one-shot lifecycle gate: it boots the market with the
// supply lock and initial reserve, binds the token proxies, and hands the
// genesis tile at (0,0) to the creator.
func (e *Engine) initialize(caller Address, now int64) error {
	if e.initialized {
		return errAlready
	}
	if caller != e.creator {
		return errRestricted
	}
	if err := e.market.Init(e.self, e.self, e.tune.Market.SupplyLock, e.tune.Market.InitialFunds, now); err != nil {
		return err
	}
	for r := market.Resource(0); r < NumResources; r++ {
		tok, err := tokenproxy.Bind(e.self, e.market, r)
		if err != nil {
			return err
		}
		e.tokens[r] = tok
	}
	e.initialized = true

	// Genesis: (0,0) is pre-owned by the creator; the grid grows outward
	// from here and a tile exists iff a neighbor was ever purchased.
	g := e.materialize(Coord{0, 0})
	g.Owner = e.creator
	g.TimesBought = 1
	g.LastTouch = now
	e.tilesBought = append(e.tilesBought, g.ID)
	for _, nc := range neighborsOf(g.Coord) {
		e.materialize(nc)
	}
	return nil
}

// materialize returns the tile record for a coordinate, creating it lazily
// on first reference. The cached clout total is seeded from the current
// neighbor heights: unmaterialized neighbors count as height 0, so later
// materialization at height 0 never invalidates an existing cache.
func (e *Engine) materialize(c Coord) *Tile {
	if t, ok := e.tiles[c]; ok {
		return t
	}
	clout := uint8(0)
	for _, nc := range neighborsOf(c) {
		h := 0
		if n, ok := e.tiles[nc]; ok {
			h = n.Height()
		}
		clout += uint8(h + 1)
	}
	t := &Tile{
		Coord:              c,
		ID:                 tileID(e.tune.InstanceID, c),
		Tower:              tower.Empty,
		PriceMultiplierPPM: fixedmath.PPMOne,
		NeighborClout:      clout,
	}
	e.tiles[c] = t
	e.tileCoords[t.ID] = c
	return t
}

func (e *Engine) tileAt(c Coord) *Tile { return e.tiles[c] }

func (e *Engine) creditWallet(to Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	v, err := fixedmath.Add(e.wallets[to], amount)
	if err != nil {
		return err
	}
	e.wallets[to] = v
	return nil
}
