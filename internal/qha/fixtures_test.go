package qha

import (
	"github.com/san-kum/qhalab/internal/eos"
	"github.com/san-kum/qhalab/internal/fit"
)

// The synthetic system is a Vinet static curve plus a phonon free energy
// F_ph = -a·T²·(1 + c·(V - vr)), which keeps S and Cv analytic.
var staticParams = eos.Params{E0: -10.84, B0: 0.55, B0Prime: 4.3, V0: 40.9}

const (
	phononA  = 1e-7 // eV/K²
	phononC  = 0.02 // 1/Å³
	phononVr = 40.9
)

func temperatureGrid(step, max float64) []float64 {
	var out []float64
	for t := 0.0; t <= max+1e-9; t += step {
		out = append(out, t)
	}
	return out
}

func syntheticVolumes(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = staticParams.V0 * (0.9 + 0.2*float64(i)/float64(n-1))
	}
	return out
}

func syntheticRecord(v float64, temps []float64) ThermalRecord {
	c := DefaultConstants()
	r := ThermalRecord{
		Temperatures:       append([]float64(nil), temps...),
		FreeEnergy:         make([]float64, len(temps)),
		Entropy:            make([]float64, len(temps)),
		HeatCapacity:       make([]float64, len(temps)),
		NumModes:           12,
		NumIntegratedModes: 12,
	}
	g := 1 + phononC*(v-phononVr)
	for i, t := range temps {
		r.FreeEnergy[i] = -phononA * t * t * g
		r.Entropy[i] = c.EvToJmol(2 * phononA * t * g)
		r.HeatCapacity[i] = c.EvToJmol(2 * phononA * t * g)
	}
	return r
}

func syntheticInput(temps []float64) Input {
	volumes := syntheticVolumes(10)
	in := Input{Static: VolumeSeries{Volumes: volumes, Energies: make([]float64, len(volumes))}}
	for i, v := range volumes {
		in.Static.Energies[i] = eos.Vinet.Energy(v, staticParams)
		in.Thermal = append(in.Thermal, syntheticRecord(v, temps))
	}
	return in
}

func indexOf(temps []float64, t float64) int {
	for i, x := range temps {
		if x == t {
			return i
		}
	}
	return -1
}

var errImplausibleBulk = fit.ErrImplausibleBulkModulus

func paramsAt(v0, b0 float64) eos.Params {
	return eos.Params{E0: -1, B0: b0, B0Prime: 4, V0: v0}
}
