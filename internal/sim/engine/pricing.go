package engine

import (
	"hexopolis.gg/internal/sim/engine/logic/fixedmath"
	"hexopolis.gg/internal/sim/engine/logic/tower"
	"hexopolis.gg/internal/sim/engine/market"
)

// blockCost prices one new block of kind r placed at tower height h when
// globalCount blocks of that kind already exist:
//
//	heightPremium[h] * max(globalCount*alpha, PPM) * recipe[r] / PPM²
//
// evaluated in token base units of the block's own resource.
func (e *Engine) blockCost(r market.Resource, globalCount uint64, h int) (uint64, error) {
	scaled, err := fixedmath.Mul(globalCount, e.tune.Economy.ResourceAlphaPPM[r])
	if err != nil {
		return 0, err
	}
	demand := fixedmath.Max(scaled, fixedmath.PPMOne)
	c, err := fixedmath.MulDiv(e.heightPremium[h], demand, fixedmath.PPMOne)
	if err != nil {
		return 0, err
	}
	return fixedmath.MulDiv(c, e.tune.Economy.RecipePPM[r], fixedmath.PPMOne)
}

// buildCost aggregates blockCost over a scanned fragment appended on top of
// the tile's current tower, threading each block's placement position in the
// global count (cost rises as more of a kind exist globally and as the tower
// grows taller).
func (e *Engine) buildCost(t *Tile, blocks []uint8) (market.Amounts, error) {
	var cost market.Amounts
	counts := [NumResources]uint64{}
	for r := 0; r < NumResources; r++ {
		counts[r] = e.stats[r].Count
	}
	base := t.Height()
	for i, b := range blocks {
		r := market.Resource(b)
		c, err := e.blockCost(r, counts[r], base+i)
		if err != nil {
			return market.Amounts{}, err
		}
		cost[r], err = fixedmath.Add(cost[r], c)
		if err != nil {
			return market.Amounts{}, err
		}
		counts[r]++
	}
	return cost, nil
}

// isolatedPrice values a tile on its own: the purchase-count component plus
// the market value of every built block at its amortized build amount.
func (e *Engine) isolatedPrice(t *Tile) (uint64, error) {
	price, err := fixedmath.MulDiv(e.tune.Economy.BaseTilePrice, t.PriceMultiplierPPM, fixedmath.PPMOne)
	if err != nil {
		return 0, err
	}
	h := t.Height()
	for i := 0; i < h; i++ {
		r := market.Resource(t.Tower.Unpack(i))
		amortized, aerr := fixedmath.MulDiv(e.heightPremium[i], e.tune.Economy.RecipePPM[r], fixedmath.PPMOne)
		if aerr != nil {
			return 0, aerr
		}
		value, verr := fixedmath.MulDiv(e.market.Price(r), amortized, fixedmath.PPMOne)
		if verr != nil {
			return 0, verr
		}
		price, err = fixedmath.Add(price, value)
		if err != nil {
			return 0, err
		}
	}
	return price, nil
}

// fullPrice is the isolated price plus the neighbor average (each existing
// neighbor's isolated price over NumNeighbors), with the seasonal bonus
// applied when the calendar window is active.
func (e *Engine) fullPrice(t *Tile, now int64) (uint64, error) {
	price, err := e.isolatedPrice(t)
	if err != nil {
		return 0, err
	}
	var neighborSum uint64
	for _, nc := range neighborsOf(t.Coord) {
		n := e.tileAt(nc)
		if n == nil {
			continue
		}
		p, nerr := e.isolatedPrice(n)
		if nerr != nil {
			return 0, nerr
		}
		neighborSum, err = fixedmath.Add(neighborSum, p)
		if err != nil {
			return 0, err
		}
	}
	price, err = fixedmath.Add(price, neighborSum/NumNeighbors)
	if err != nil {
		return 0, err
	}
	if e.inSeason(now) {
		price, err = fixedmath.MulDiv(price, e.tune.Calendar.SeasonPriceBonusPPM, fixedmath.PPMOne)
		if err != nil {
			return 0, err
		}
	}
	return price, nil
}

// scanFragment applies the truncating decode policy for caller-supplied
// block fragments and validates the result against the height cap.
func (e *Engine) scanFragment(t *Tile, raw []byte) ([]uint8, error) {
	blocks := tower.ScanBlocks(raw, NumResources)
	if len(blocks) == 0 {
		return nil, errInvalid
	}
	if t.Height()+len(blocks) > MaxHeight {
		return nil, errMaxHeight
	}
	return blocks, nil
}
