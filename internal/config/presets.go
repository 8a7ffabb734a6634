package config

import (
	"maps"
	"slices"
)

// UnitPreset converts the columns of e-v.dat written by one code into eV
// and Å³.
type UnitPreset struct {
	Description  string
	EnergyUnit   float64
	VolumeFactor float64
}

const bohr3 = 0.148184711472 // Å³

var Presets = map[string]*UnitPreset{
	"vasp": {
		Description:  "eV and Å³",
		EnergyUnit:   1,
		VolumeFactor: 1,
	},
	"qe": {
		Description:  "Ry and bohr³",
		EnergyUnit:   13.605693122994,
		VolumeFactor: bohr3,
	},
	"abinit": {
		Description:  "Ha and bohr³",
		EnergyUnit:   27.211386245988,
		VolumeFactor: bohr3,
	},
	"kjmol": {
		Description:  "kJ/mol and Å³",
		EnergyUnit:   1 / 96.4853910,
		VolumeFactor: 1,
	},
}

func GetPreset(name string) *UnitPreset {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return p
}

func ListPresets() []string {
	return slices.Sorted(maps.Keys(Presets))
}
