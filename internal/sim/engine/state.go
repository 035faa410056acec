package engine

import (
	"sort"

	"hexopolis.gg/internal/sim/engine/logic/tower"
	"hexopolis.gg/internal/sim/engine/market"
	"hexopolis.gg/internal/sim/engine/market/tokenproxy"
)

// StateV1 is the canonical serializable engine state: every map flattened
// into a deterministically sorted slice. The digest and the snapshot file
// both hash/encode exactly this.
type StateV1 struct {
	Version      int    `json:"version"`
	InstanceID   string `json:"instance_id"`
	TuningDigest string `json:"tuning_digest"`
	Initialized  bool   `json:"initialized"`
	OpSeq        uint64 `json:"op_seq"`

	FeePool uint64         `json:"fee_pool"`
	Wallets []AccountEntry `json:"wallets"`
	Credits []AccountEntry `json:"credits"`

	Stats       [NumResources]BlockStats `json:"stats"`
	TilesBought []string                 `json:"tiles_bought"`
	Tiles       []TileState              `json:"tiles"`

	Market market.MarketState `json:"market"`
}

type AccountEntry struct {
	Address Address `json:"address"`
	Amount  uint64  `json:"amount"`
}

type TileState struct {
	X                  int            `json:"x"`
	Y                  int            `json:"y"`
	ID                 string         `json:"id"`
	Owner              Address        `json:"owner,omitempty"`
	Tower              uint64         `json:"tower"`
	TimesBought        uint32         `json:"times_bought"`
	LastTouch          int64          `json:"last_touch"`
	PriceMultiplierPPM uint64         `json:"price_multiplier_ppm"`
	SharedResources    market.Amounts `json:"shared_resources"`
	SharedFunds        uint64         `json:"shared_funds"`
	Scores             market.Amounts `json:"scores"`
	NeighborClout      uint8          `json:"neighbor_clout"`
	Name               string         `json:"name,omitempty"`
}

func (e *Engine) exportState() StateV1 {
	s := StateV1{
		Version:      1,
		InstanceID:   e.tune.InstanceID,
		TuningDigest: e.tune.Digest(),
		Initialized:  e.initialized,
		OpSeq:        e.opSeq,
		FeePool:      e.feePool,
		Stats:        e.stats,
		TilesBought:  append([]string(nil), e.tilesBought...),
		Market:       e.market.Export(),
	}
	s.Wallets = sortedEntries(e.wallets)
	s.Credits = sortedEntries(e.credits)
	for _, t := range e.tiles {
		s.Tiles = append(s.Tiles, TileState{
			X:                  t.Coord.X,
			Y:                  t.Coord.Y,
			ID:                 t.ID,
			Owner:              t.Owner,
			Tower:              uint64(t.Tower),
			TimesBought:        t.TimesBought,
			LastTouch:          t.LastTouch,
			PriceMultiplierPPM: t.PriceMultiplierPPM,
			SharedResources:    t.SharedResources,
			SharedFunds:        t.SharedFunds,
			Scores:             t.Scores,
			NeighborClout:      t.NeighborClout,
			Name:               t.Name,
		})
	}
	sort.Slice(s.Tiles, func(i, j int) bool {
		if s.Tiles[i].X != s.Tiles[j].X {
			return s.Tiles[i].X < s.Tiles[j].X
		}
		return s.Tiles[i].Y < s.Tiles[j].Y
	})
	return s
}

func (e *Engine) importState(s StateV1) error {
	if s.Version != 1 || s.InstanceID != e.tune.InstanceID {
		return errInvalid
	}
	if s.TuningDigest != e.tune.Digest() {
		return errInvalid
	}
	if err := e.market.Import(s.Market); err != nil {
		return errInvalid
	}
	for r := market.Resource(0); r < NumResources; r++ {
		e.tokens[r] = tokenproxy.Attach(e.market, r)
	}
	e.initialized = s.Initialized
	e.opSeq = s.OpSeq
	e.feePool = s.FeePool
	e.stats = s.Stats
	e.tilesBought = append([]string(nil), s.TilesBought...)

	e.wallets = map[Address]uint64{}
	for _, w := range s.Wallets {
		e.wallets[w.Address] = w.Amount
	}
	e.credits = map[Address]uint64{}
	for _, c := range s.Credits {
		e.credits[c.Address] = c.Amount
	}

	e.tiles = map[Coord]*Tile{}
	e.tileCoords = map[string]Coord{}
	for _, ts := range s.Tiles {
		c := Coord{X: ts.X, Y: ts.Y}
		t := &Tile{
			Coord:              c,
			ID:                 ts.ID,
			Owner:              ts.Owner,
			Tower:              tower.Tower(ts.Tower),
			TimesBought:        ts.TimesBought,
			LastTouch:          ts.LastTouch,
			PriceMultiplierPPM: ts.PriceMultiplierPPM,
			SharedResources:    ts.SharedResources,
			SharedFunds:        ts.SharedFunds,
			Scores:             ts.Scores,
			NeighborClout:      ts.NeighborClout,
			Name:               ts.Name,
		}
		e.tiles[c] = t
		e.tileCoords[t.ID] = c
	}
	return nil
}

func sortedEntries(m map[Address]uint64) []AccountEntry {
	out := make([]AccountEntry, 0, len(m))
	for a, v := range m {
		if v == 0 {
			continue
		}
		out = append(out, AccountEntry{a, v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}
