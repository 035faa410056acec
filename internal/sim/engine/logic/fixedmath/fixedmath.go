package fixedmath

import (
	"errors"
	"math/big"
	"math/bits"
)

// PPMOne is 1.0 in parts-per-million fixed point. Every ratio in the
// engine is an integer scaled by PPMOne.
const PPMOne uint64 = 1_000_000

// NumNeighbors is the degree of the hex grid; the tax rate is exactly one
// neighbor-share's worth.
const (
	NumNeighbors      = 6
	TaxRatePPM uint64 = PPMOne / NumNeighbors
)

var ErrOverflow = errors.New("arithmetic overflow")

func Add(a, b uint64) (uint64, error) {
	s, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return s, nil
}

func Sub(a, b uint64) (uint64, error) {
	d, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrOverflow
	}
	return d, nil
}

func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// MulDiv computes a*b/den with a 128-bit intermediate so the multiply never
// loses precision. The result truncates toward zero. Errors when den is zero
// or the quotient does not fit in 64 bits.
func MulDiv(a, b, den uint64) (uint64, error) {
	if den == 0 {
		return 0, ErrOverflow
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= den {
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, den)
	return q, nil
}

func Max(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// ToTaxes returns the tax share of amount: amount * TaxRatePPM / PPMOne,
// truncated toward zero.
func ToTaxes(amount uint64) uint64 {
	v, err := MulDiv(amount, TaxRatePPM, PPMOne)
	if err != nil {
		// TaxRatePPM < PPMOne, so the quotient always fits.
		return 0
	}
	return v
}

// ToTaxed returns the untaxed remainder. ToTaxed(a) + ToTaxes(a) == a for
// all a: the truncation remainder folds into the taxed side.
func ToTaxed(amount uint64) uint64 {
	return amount - ToTaxes(amount)
}

// EstSqrtPPM estimates sqrt(n) scaled by PPMOne using exactly two Newton
// iterations seeded from hintPPM (or (n+1)/2, PPM-scaled, when hintPPM is
// zero). Callers keep the previous result as the next hint so the estimate
// converges across repeated evaluations of a slowly growing n. The result is
// bit-for-bit reproducible: fixed iteration count, floor division only.
func EstSqrtPPM(n, hintPPM uint64) uint64 {
	if n == 0 {
		return 0
	}
	ppm := new(big.Int).SetUint64(PPMOne)
	// target = n * PPMOne^2, so that x ~= sqrt(target) is PPM-scaled.
	target := new(big.Int).SetUint64(n)
	target.Mul(target, ppm)
	target.Mul(target, ppm)

	x := new(big.Int)
	if hintPPM != 0 {
		x.SetUint64(hintPPM)
	} else {
		x.SetUint64(n + 1)
		x.Rsh(x, 1)
		x.Mul(x, ppm)
	}
	if x.Sign() == 0 {
		x.SetUint64(PPMOne)
	}
	t := new(big.Int)
	for i := 0; i < 2; i++ {
		t.Quo(target, x)
		x.Add(x, t)
		x.Rsh(x, 1)
	}
	if !x.IsUint64() {
		// A wildly oversized hint cannot push the estimate past the seed
		// ceiling after two averaging steps against target/x; clamp anyway.
		return ^uint64(0)
	}
	return x.Uint64()
}
