package tea

import (
	"fmt"
	"math"
)

const (
	irrTolerance     = 1e-12
	irrMaxIterations = 500
	irrLowerBound    = -1 + 1e-9
	irrUpperLimit    = 1e9
)

// NPV discounts cashflows at rate. The first cashflow is at t=0 and is not
// discounted.
func NPV(rate float64, cashflows []float64) float64 {
	total := 0.0
	for t, cf := range cashflows {
		total += cf / math.Pow(1+rate, float64(t))
	}
	return total
}

// IRR returns the rate at which the cashflows' NPV is zero. The cashflows must
// change sign; the root is bracketed above -100% and found by bisection.
func IRR(cashflows []float64) (float64, error) {
	if len(cashflows) < 2 {
		return 0, fmt.Errorf("%w: irr needs at least two cashflows", ErrDegenerateResult)
	}
	if !signChange(cashflows) {
		return 0, fmt.Errorf("%w: irr undefined, cashflows %v never change sign", ErrDegenerateResult, cashflows)
	}

	lo, hi := irrLowerBound, 1.0
	fLo := NPV(lo, cashflows)
	fHi := NPV(hi, cashflows)
	for sameSign(fLo, fHi) {
		if hi >= irrUpperLimit {
			return 0, fmt.Errorf("%w: irr not bracketed for %v", ErrDegenerateResult, cashflows)
		}
		hi *= 10
		fHi = NPV(hi, cashflows)
	}

	for i := 0; i < irrMaxIterations; i++ {
		mid := lo + (hi-lo)/2
		fMid := NPV(mid, cashflows)
		if fMid == 0 || (hi-lo)/2 < irrTolerance {
			return mid, nil
		}
		if sameSign(fMid, fLo) {
			lo, fLo = mid, fMid
		} else {
			hi = mid
		}
	}
	return lo + (hi-lo)/2, nil
}

func signChange(cashflows []float64) bool {
	var pos, neg bool
	for _, cf := range cashflows {
		pos = pos || cf > 0
		neg = neg || cf < 0
	}
	return pos && neg
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
