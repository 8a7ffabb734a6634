package qha

import (
	"math"

	"github.com/san-kum/qhalab/internal/fit"
)

// minHeatCapacity (J/K/mol) below which γ is undefined.
const minHeatCapacity = 1e-10

// minPolyfitDegree is the lowest G(T) polynomial degree used for Cp. A
// quadratic would make G'' constant across the window, so windows with fewer
// than minPolyfitDegree+1 valid points are left missing.
const minPolyfitDegree = 3

// derive fills every temperature series of res from its fits. in is the
// prepared view the fits were computed on.
func derive(res *Result, in Input, opts Options) {
	n := res.Len()
	c := opts.Constants

	res.Volume = nanSeries(n)
	res.Gibbs = nanSeries(n)
	res.BulkModulus = nanSeries(n)
	res.BulkModulusPrime = nanSeries(n)
	for i, f := range res.Fits {
		if !f.OK() {
			continue
		}
		res.Volume[i] = f.Params.V0
		// The fitted surface already carries P·V, so its minimum is G.
		res.Gibbs[i] = f.Params.E0
		res.BulkModulus[i] = f.Params.B0 * c.EVAngstromToGPa
		res.BulkModulusPrime[i] = f.Params.B0Prime
	}

	res.Entropy = atEquilibrium(res, in, opts.InterpolationDegree, func(r ThermalRecord) []float64 { return r.Entropy })
	res.HeatCapacityV = atEquilibrium(res, in, opts.InterpolationDegree, func(r ThermalRecord) []float64 { return r.HeatCapacity })

	dv := gradient(res.Temperatures, res.Volume)
	res.ThermalExpansion = nanSeries(n)
	for i := range dv {
		res.ThermalExpansion[i] = dv[i] / res.Volume[i]
	}

	res.VolumeExpansion = volumeExpansion(res.Temperatures, res.Volume, opts.ReferenceTemperature)

	enthalpy := nanSeries(n)
	for i, t := range res.Temperatures {
		enthalpy[i] = res.Gibbs[i] + t*c.JmolToEv(res.Entropy[i])
	}
	res.HeatCapacityP = gradient(res.Temperatures, enthalpy)
	for i := range res.HeatCapacityP {
		res.HeatCapacityP[i] = c.EvToJmol(res.HeatCapacityP[i])
	}

	res.HeatCapacityPPolyfit = polyfitHeatCapacity(res.Temperatures, res.Gibbs, opts.PolyfitWindow, opts.PolyfitDegree)
	for i := range res.HeatCapacityPPolyfit {
		res.HeatCapacityPPolyfit[i] = c.EvToJmol(res.HeatCapacityPPolyfit[i])
	}

	res.Gruneisen = nanSeries(n)
	for i := range res.Gruneisen {
		cv := res.HeatCapacityV[i]
		if Missing(cv) || math.Abs(cv) < minHeatCapacity {
			continue
		}
		b0 := res.Fits[i].Params.B0
		res.Gruneisen[i] = res.Volume[i] * b0 * res.ThermalExpansion[i] / c.JmolToEv(cv)
	}
}

// atEquilibrium interpolates a per-volume thermal series to V0(T) with a
// polynomial in volume.
func atEquilibrium(res *Result, in Input, degree int, series func(ThermalRecord) []float64) []float64 {
	out := nanSeries(res.Len())
	nv := len(res.Volumes)
	if degree > nv-1 {
		degree = nv - 1
	}
	ys := make([]float64, nv)
	for i := range out {
		if Missing(res.Volume[i]) {
			continue
		}
		for v, r := range in.Thermal {
			ys[v] = series(r)[i]
		}
		p, err := fit.Polyfit(res.Volumes, ys, degree)
		if err != nil {
			continue
		}
		out[i] = p.Eval(res.Volume[i])
	}
	return out
}

// gradient differentiates y over x: second-order central differences in the
// interior, one-sided at the ends and next to missing samples. A point with
// no usable neighbour stays missing.
func gradient(x, y []float64) []float64 {
	n := len(y)
	out := nanSeries(n)
	for i := 0; i < n; i++ {
		if Missing(y[i]) {
			continue
		}
		prev := i > 0 && !Missing(y[i-1])
		next := i < n-1 && !Missing(y[i+1])
		switch {
		case prev && next:
			h1 := x[i] - x[i-1]
			h2 := x[i+1] - x[i]
			out[i] = -h2/(h1*(h1+h2))*y[i-1] + (h2-h1)/(h1*h2)*y[i] + h1/(h2*(h1+h2))*y[i+1]
		case next:
			out[i] = (y[i+1] - y[i]) / (x[i+1] - x[i])
		case prev:
			out[i] = (y[i] - y[i-1]) / (x[i] - x[i-1])
		}
	}
	return out
}

// window returns the index range [lo, hi) of width 2·half+1 centred on i,
// shifted inward at the grid edges.
func window(i, half, n int) (int, int) {
	width := 2*half + 1
	if width >= n {
		return 0, n
	}
	lo := i - half
	if lo < 0 {
		lo = 0
	}
	if lo+width > n {
		lo = n - width
	}
	return lo, lo + width
}

// polyfitHeatCapacity returns -T·d²G/dT² (eV/K) from a local polynomial fit of
// G over a temperature window around each point. The degree is lowered to
// fit short windows but never below minPolyfitDegree.
func polyfitHeatCapacity(temps, gibbs []float64, half, degree int) []float64 {
	n := len(temps)
	out := nanSeries(n)
	for i := 0; i < n; i++ {
		if Missing(gibbs[i]) {
			continue
		}
		lo, hi := window(i, half, n)
		var xs, ys []float64
		for j := lo; j < hi; j++ {
			if !Missing(gibbs[j]) {
				xs = append(xs, temps[j])
				ys = append(ys, gibbs[j])
			}
		}
		d := degree
		if d > len(xs)-1 {
			d = len(xs) - 1
		}
		if d < minPolyfitDegree {
			continue
		}
		p, err := fit.Polyfit(xs, ys, d)
		if err != nil {
			continue
		}
		out[i] = -temps[i] * p.Derivative(temps[i], 2)
	}
	return out
}

// volumeExpansion is the linear expansion (V/Vref)^(1/3) - 1 relative to the
// valid grid temperature closest to ref.
func volumeExpansion(temps, volumes []float64, ref float64) []float64 {
	out := nanSeries(len(temps))
	best := referenceIndex(temps, volumes, ref)
	if best < 0 {
		return out
	}
	vref := volumes[best]
	for i, v := range volumes {
		if !Missing(v) {
			out[i] = math.Cbrt(v/vref) - 1
		}
	}
	return out
}

func referenceIndex(temps, volumes []float64, ref float64) int {
	best := -1
	for i, t := range temps {
		if Missing(volumes[i]) {
			continue
		}
		if best < 0 || math.Abs(t-ref) < math.Abs(temps[best]-ref) {
			best = i
		}
	}
	return best
}

// ReferenceIndex returns the temperature index VolumeExpansion is relative to,
// or -1 when no fit succeeded.
func (r *Result) ReferenceIndex(ref float64) int {
	return referenceIndex(r.Temperatures, r.Volume, ref)
}
