// Package eos holds the equation-of-state models used to fit energy-volume
// curves. All functions are pure; energies are in eV, volumes in Å³ and
// pressures/bulk moduli in eV/Å³.
package eos

import (
	"fmt"
	"math"
	"strings"
)

// Kind selects one of the supported equations of state.
type Kind int

const (
	Vinet Kind = iota
	BirchMurnaghan
	Murnaghan
)

// Default is the EOS used when none is requested.
const Default = Vinet

// Params is the fitted parameter tuple of an EOS at one temperature.
type Params struct {
	E0      float64 `json:"e0"`
	B0      float64 `json:"b0"`
	B0Prime float64 `json:"b0_prime"`
	V0      float64 `json:"v0"`
}

// Slice returns the parameters in fit order (E0, B0, B0', V0).
func (p Params) Slice() []float64 {
	return []float64{p.E0, p.B0, p.B0Prime, p.V0}
}

// FromSlice is the inverse of Params.Slice.
func FromSlice(x []float64) Params {
	return Params{E0: x[0], B0: x[1], B0Prime: x[2], V0: x[3]}
}

func (p Params) IsValid() bool {
	for _, v := range p.Slice() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Model bundles the closed-form functions of one EOS.
type Model struct {
	Name        string
	Energy      func(v float64, p Params) float64
	Pressure    func(v float64, p Params) float64
	BulkModulus func(v float64, p Params) float64
}

var models = [...]Model{
	Vinet: {
		Name:        "vinet",
		Energy:      vinetEnergy,
		Pressure:    vinetPressure,
		BulkModulus: vinetBulkModulus,
	},
	BirchMurnaghan: {
		Name:        "birch_murnaghan",
		Energy:      birchMurnaghanEnergy,
		Pressure:    birchMurnaghanPressure,
		BulkModulus: birchMurnaghanBulkModulus,
	},
	Murnaghan: {
		Name:        "murnaghan",
		Energy:      murnaghanEnergy,
		Pressure:    murnaghanPressure,
		BulkModulus: murnaghanBulkModulus,
	},
}

// Kinds lists every supported EOS in declaration order.
func Kinds() []Kind {
	return []Kind{Vinet, BirchMurnaghan, Murnaghan}
}

// ParseKind maps a keyword such as "vinet" to its Kind. The empty string
// selects Default.
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Default, nil
	}
	for _, k := range Kinds() {
		if models[k].Name == name {
			return k, nil
		}
	}
	return Default, fmt.Errorf("unknown eos: %s (available: vinet, birch_murnaghan, murnaghan)", name)
}

func (k Kind) valid() bool { return k >= Vinet && k <= Murnaghan }

func (k Kind) String() string {
	if !k.valid() {
		return fmt.Sprintf("eos(%d)", int(k))
	}
	return models[k].Name
}

// Model returns the function table for k. Unknown kinds fall back to Default.
func (k Kind) Model() Model {
	if !k.valid() {
		return models[Default]
	}
	return models[k]
}

func (k Kind) Energy(v float64, p Params) float64      { return k.Model().Energy(v, p) }
func (k Kind) Pressure(v float64, p Params) float64    { return k.Model().Pressure(v, p) }
func (k Kind) BulkModulus(v float64, p Params) float64 { return k.Model().BulkModulus(v, p) }

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func vinetEnergy(v float64, p Params) float64 {
	x := math.Cbrt(v / p.V0)
	bp := p.B0Prime - 1
	xi := 1.5 * bp
	return p.E0 + 2*p.B0*p.V0/(bp*bp)*(2-(5+3*p.B0Prime*(x-1)-3*x)*math.Exp(-xi*(x-1)))
}

func vinetPressure(v float64, p Params) float64 {
	x := math.Cbrt(v / p.V0)
	xi := 1.5 * (p.B0Prime - 1)
	return 3 * p.B0 * (1 - x) / (x * x) * math.Exp(xi*(1-x))
}

func vinetBulkModulus(v float64, p Params) float64 {
	x := math.Cbrt(v / p.V0)
	xi := 1.5 * (p.B0Prime - 1)
	return p.B0 / (x * x) * math.Exp(xi*(1-x)) * (2 - x + xi*x*(1-x))
}

func birchMurnaghanEnergy(v float64, p Params) float64 {
	eta2 := math.Pow(p.V0/v, 2.0/3.0)
	f := eta2 - 1
	return p.E0 + 9*p.V0*p.B0/16*(f*f*f*p.B0Prime+f*f*(6-4*eta2))
}

func birchMurnaghanPressure(v float64, p Params) float64 {
	eta := math.Cbrt(p.V0 / v)
	eta2 := eta * eta
	eta5 := eta2 * eta2 * eta
	eta7 := eta5 * eta2
	c := 0.75 * (p.B0Prime - 4)
	return 1.5 * p.B0 * (eta7 - eta5) * (1 + c*(eta2-1))
}

func birchMurnaghanBulkModulus(v float64, p Params) float64 {
	eta := math.Cbrt(p.V0 / v)
	eta2 := eta * eta
	eta5 := eta2 * eta2 * eta
	eta7 := eta5 * eta2
	eta9 := eta7 * eta2
	c := 0.75 * (p.B0Prime - 4)
	return 0.5 * p.B0 * ((7*eta7-5*eta5)*(1+c*(eta2-1)) + 2*c*(eta9-eta7))
}

func murnaghanEnergy(v float64, p Params) float64 {
	bp := p.B0Prime
	return p.E0 + p.B0*v/bp*(math.Pow(p.V0/v, bp)/(bp-1)+1) - p.B0*p.V0/(bp-1)
}

func murnaghanPressure(v float64, p Params) float64 {
	return p.B0 / p.B0Prime * (math.Pow(p.V0/v, p.B0Prime) - 1)
}

func murnaghanBulkModulus(v float64, p Params) float64 {
	return p.B0 * math.Pow(p.V0/v, p.B0Prime)
}
