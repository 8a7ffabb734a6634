package eos

import (
	"errors"
	"math"
)

var ErrNoBracket = errors.New("eos: pressure not bracketed by volume range")

const (
	inverseTol     = 1e-12
	inverseMaxIter = 200
)

// VolumeAtPressure returns the volume at which k under p reaches pressure
// (eV/Å³). P(V) is monotonically decreasing for B0 > 0, so the root is found by
// bisection on a bracket grown outward from [V0/2, 2·V0].
func VolumeAtPressure(k Kind, p Params, pressure float64) (float64, error) {
	if !p.IsValid() || p.B0 <= 0 || p.V0 <= 0 {
		return math.NaN(), ErrNoBracket
	}
	f := func(v float64) float64 { return k.Pressure(v, p) - pressure }

	lo, hi := 0.5*p.V0, 2*p.V0
	for i := 0; i < 8 && f(lo) < 0; i++ {
		lo *= 0.5
	}
	for i := 0; i < 8 && f(hi) > 0; i++ {
		hi *= 2
	}
	flo, fhi := f(lo), f(hi)
	if math.IsNaN(flo) || math.IsNaN(fhi) || flo < 0 || fhi > 0 {
		return math.NaN(), ErrNoBracket
	}

	for i := 0; i < inverseMaxIter; i++ {
		mid := 0.5 * (lo + hi)
		if f(mid) > 0 {
			lo = mid
		} else {
			hi = mid
		}
		if hi-lo < inverseTol*p.V0 {
			break
		}
	}
	return 0.5 * (lo + hi), nil
}
