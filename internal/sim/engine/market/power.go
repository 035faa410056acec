package market

import (
	"math/big"

	"hexopolis.gg/internal/sim/engine/logic/fixedmath"
)

// Fixed-point power kernel for the bonded curve. All intermediates are
// big.Int at 1e18 scale with floor rounding everywhere, so results are
// bit-for-bit reproducible across platforms. The exponent is PPM-scaled,
// matching the curve's connector-weight parameterization.

const ppm = fixedmath.PPMOne

var (
	fpOne = new(big.Int).SetUint64(1_000_000_000_000_000_000) // 1e18
	fpTwo = new(big.Int).Mul(fpOne, big.NewInt(2))
	// floor(ln(2) * 1e18)
	fpLn2  = new(big.Int).SetUint64(693_147_180_559_945_309)
	bigPPM = new(big.Int).SetUint64(ppm)
)

// powPPM computes (numer/denom)^(expPPM/PPMOne) in PPM scale, truncated.
// numer and denom must be positive; a zero numer yields zero.
func powPPM(numer, denom, expPPM uint64) uint64 {
	if denom == 0 {
		return 0
	}
	if numer == 0 {
		return 0
	}
	if numer == denom || expPPM == 0 {
		return ppm
	}
	hi, lo := numer, denom
	inverted := false
	if numer < denom {
		hi, lo = denom, numer
		inverted = true
	}

	lnAbs := lnFP(hi, lo)
	y := new(big.Int).Mul(lnAbs, new(big.Int).SetUint64(expPPM))
	y.Quo(y, bigPPM)
	e := expFP(y)

	out := new(big.Int)
	if inverted {
		// (x)^p with x<1: compute (1/x)^p then invert.
		out.Mul(bigPPM, fpOne)
		out.Quo(out, e)
	} else {
		out.Mul(e, bigPPM)
		out.Quo(out, fpOne)
	}
	if !out.IsUint64() {
		return ^uint64(0)
	}
	return out.Uint64()
}

// lnFP returns ln(numer/denom) at 1e18 scale for numer > denom > 0, via
// ln(x) = (k + log2frac(m)) * ln2 with x = 2^k * m, m in [1,2).
func lnFP(numer, denom uint64) *big.Int {
	x := new(big.Int).SetUint64(numer)
	x.Mul(x, fpOne)
	x.Quo(x, new(big.Int).SetUint64(denom))

	k := 0
	for x.Cmp(fpTwo) >= 0 {
		x.Rsh(x, 1)
		k++
	}

	// Fractional log2 by repeated squaring: after each squaring, a mantissa
	// >= 2 contributes the next result bit and is halved back into range.
	frac := new(big.Int)
	bit := new(big.Int).Rsh(fpOne, 1)
	for i := 0; i < 60; i++ {
		x.Mul(x, x)
		x.Quo(x, fpOne)
		if x.Cmp(fpTwo) >= 0 {
			x.Rsh(x, 1)
			frac.Add(frac, bit)
		}
		bit.Rsh(bit, 1)
	}

	log2 := new(big.Int).Mul(big.NewInt(int64(k)), fpOne)
	log2.Add(log2, frac)
	log2.Mul(log2, fpLn2)
	log2.Quo(log2, fpOne)
	return log2
}

// expFP returns e^y at 1e18 scale for y >= 0 at 1e18 scale, via
// e^y = 2^floor(y/ln2) * e^r with r = y mod ln2, and a fixed 20-term
// Taylor series for e^r (r < ln2, so the series converges fast and the
// truncation error is far below PPM resolution).
func expFP(y *big.Int) *big.Int {
	k := new(big.Int).Quo(y, fpLn2)
	r := new(big.Int).Mod(y, fpLn2)

	sum := new(big.Int).Set(fpOne)
	term := new(big.Int).Set(fpOne)
	for n := int64(1); n <= 20; n++ {
		term.Mul(term, r)
		term.Quo(term, fpOne)
		term.Quo(term, big.NewInt(n))
		if term.Sign() == 0 {
			break
		}
		sum.Add(sum, term)
	}

	if k.Sign() > 0 {
		sum.Lsh(sum, uint(k.Uint64()))
	}
	return sum
}

// purchaseReturn computes the tokens granted for spending `spend` against a
// curve with the given supply/funds: supply * ((1 + spend/funds)^w - 1),
// w = cwPPM/PPMOne.
func purchaseReturn(supply, funds, cwPPM, spend uint64) (uint64, error) {
	if spend == 0 {
		return 0, nil
	}
	if supply == 0 || funds == 0 {
		return 0, errEmptyCurve
	}
	newFunds, err := fixedmath.Add(funds, spend)
	if err != nil {
		return 0, err
	}
	p := powPPM(newFunds, funds, cwPPM)
	if p < ppm {
		p = ppm
	}
	return fixedmath.MulDiv(supply, p-ppm, ppm)
}

// saleReturn computes the native payout for burning `amount` tokens:
// funds * (1 - (1 - amount/supply)^(1/w)).
func saleReturn(supply, funds, cwPPM, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, nil
	}
	if supply == 0 || funds == 0 || amount > supply {
		return 0, errEmptyCurve
	}
	if amount == supply {
		return funds, nil
	}
	invW, err := fixedmath.MulDiv(ppm, ppm, cwPPM)
	if err != nil {
		return 0, err
	}
	p := powPPM(supply-amount, supply, invW)
	// Round the retained fraction up (payout down) so a buy/sell round trip
	// can never be strictly profitable at fixed supply/funds.
	if p < ppm {
		p++
	} else {
		p = ppm
	}
	return fixedmath.MulDiv(funds, ppm-p, ppm)
}
