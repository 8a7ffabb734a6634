// Package qha computes quasi-harmonic thermodynamic properties from static
// energies and phonon thermal properties sampled on a common volume grid.
package qha

import (
	"math"
	"slices"

	"github.com/san-kum/qhalab/internal/eos"
)

// Constants is the unit-conversion table used by the engine. It is supplied
// once at startup and never modified.
type Constants struct {
	EvTokJmol       float64 // eV per cell -> kJ/mol
	EVAngstromToGPa float64 // eV/Å³ -> GPa
}

func DefaultConstants() Constants {
	return Constants{
		EvTokJmol:       96.4853910,
		EVAngstromToGPa: 160.21766208,
	}
}

// JmolToEv converts a per-mole quantity in J/K/mol to eV/K per cell.
func (c Constants) JmolToEv(v float64) float64 { return v / 1000 / c.EvTokJmol }

// EvToJmol is the inverse of JmolToEv.
func (c Constants) EvToJmol(v float64) float64 { return v * 1000 * c.EvTokJmol }

// GPaToEvA3 converts a pressure in GPa to eV/Å³.
func (c Constants) GPaToEvA3(p float64) float64 { return p / c.EVAngstromToGPa }

// VolumeSeries pairs cell volumes (Å³) with static electronic energies (eV).
type VolumeSeries struct {
	Volumes  []float64
	Energies []float64
}

func (s VolumeSeries) Len() int { return len(s.Volumes) }

// ThermalRecord holds the phonon thermal properties computed at one volume.
// FreeEnergy is in eV, Entropy and HeatCapacity in J/K/mol.
type ThermalRecord struct {
	Temperatures       []float64
	FreeEnergy         []float64
	Entropy            []float64
	HeatCapacity       []float64
	NumModes           int
	NumIntegratedModes int
}

// ImaginaryCount is the number of modes left out of the thermal integration,
// which phonopy does for imaginary frequencies.
func (r ThermalRecord) ImaginaryCount() int { return r.NumModes - r.NumIntegratedModes }

func (r ThermalRecord) clone() ThermalRecord {
	r.Temperatures = slices.Clone(r.Temperatures)
	r.FreeEnergy = slices.Clone(r.FreeEnergy)
	r.Entropy = slices.Clone(r.Entropy)
	r.HeatCapacity = slices.Clone(r.HeatCapacity)
	return r
}

// truncate keeps the first n temperatures.
func (r ThermalRecord) truncate(n int) ThermalRecord {
	r.Temperatures = r.Temperatures[:n]
	r.FreeEnergy = r.FreeEnergy[:n]
	r.Entropy = r.Entropy[:n]
	r.HeatCapacity = r.HeatCapacity[:n]
	return r
}

// ThermalPropertySet is one ThermalRecord per volume, in volume order.
type ThermalPropertySet []ThermalRecord

// Input is everything the engine needs for one run.
type Input struct {
	Static  VolumeSeries
	Thermal ThermalPropertySet
}

// Clone returns a deep copy; the engine never mutates caller data.
func (in Input) Clone() Input {
	out := Input{
		Static: VolumeSeries{
			Volumes:  slices.Clone(in.Static.Volumes),
			Energies: slices.Clone(in.Static.Energies),
		},
		Thermal: make(ThermalPropertySet, len(in.Thermal)),
	}
	for i, r := range in.Thermal {
		out.Thermal[i] = r.clone()
	}
	return out
}

// Subset returns an owned copy restricted to the given volume indices.
func (in Input) Subset(indices []int) Input {
	out := Input{
		Static: VolumeSeries{
			Volumes:  make([]float64, 0, len(indices)),
			Energies: make([]float64, 0, len(indices)),
		},
		Thermal: make(ThermalPropertySet, 0, len(indices)),
	}
	for _, i := range indices {
		out.Static.Volumes = append(out.Static.Volumes, in.Static.Volumes[i])
		out.Static.Energies = append(out.Static.Energies, in.Static.Energies[i])
		out.Thermal = append(out.Thermal, in.Thermal[i].clone())
	}
	return out
}

// Temperatures returns the shared temperature grid.
func (in Input) Temperatures() []float64 {
	if len(in.Thermal) == 0 {
		return nil
	}
	return in.Thermal[0].Temperatures
}

// TemperatureFit is the EOS fit at one temperature. Err is a *FittingError
// when the fit failed, in which case Params is meaningless.
type TemperatureFit struct {
	Temperature float64    `json:"temperature"`
	Params      eos.Params `json:"params"`
	SSE         float64    `json:"sse"`
	Iterations  int        `json:"iterations"`
	Err         error      `json:"-"`
}

func (f TemperatureFit) OK() bool { return f.Err == nil }

// Result is the outcome of one QHA run. It is built once by Solver.Solve and
// must be treated as read-only. Missing values are NaN.
type Result struct {
	EOS          eos.Kind
	Pressure     float64 // GPa
	Constants    Constants
	Temperatures []float64
	Volumes      []float64   // volumes used in the fits
	Helmholtz    [][]float64 // [temperature][volume], eV, includes the PV term
	Fits         []TemperatureFit

	Excluded []int   // indices into the caller's volume list
	Warnings []error // *ImaginaryModeWarning
	Failures []error // *FittingError

	Volume               []float64 // Å³
	Gibbs                []float64 // eV
	BulkModulus          []float64 // GPa
	BulkModulusPrime     []float64
	ThermalExpansion     []float64 // 1/K
	VolumeExpansion      []float64
	Entropy              []float64 // J/K/mol at V0(T)
	HeatCapacityV        []float64 // J/K/mol at V0(T)
	HeatCapacityP        []float64 // J/K/mol, numerical
	HeatCapacityPPolyfit []float64 // J/K/mol, polynomial fit of G(T)
	Gruneisen            []float64
}

// Len is the number of temperatures.
func (r *Result) Len() int { return len(r.Temperatures) }

// Valid reports whether the fit at temperature index i succeeded.
func (r *Result) Valid(i int) bool { return i >= 0 && i < len(r.Fits) && r.Fits[i].OK() }

// Missing reports whether v is the missing-value marker.
func Missing(v float64) bool { return math.IsNaN(v) }

func nanSeries(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
