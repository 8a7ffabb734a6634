// Package phonon reads the static energy curve and phonopy thermal
// properties that feed a QHA run.
package phonon

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/qhalab/internal/qha"
)

var (
	ErrFormat = errors.New("phonon: malformed input")
	ErrEmpty  = errors.New("phonon: no data")
)

// ParseError locates a malformed line in an input file.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Units scales raw file values into eV and Å³ per cell. Factor is the
// formula-unit multiplier applied to every energy-like quantity; EnergyUnit
// converts the static energies of e-v.dat to eV.
type Units struct {
	Factor       float64
	EnergyUnit   float64
	VolumeFactor float64
}

func DefaultUnits() Units {
	return Units{Factor: 1, EnergyUnit: 1, VolumeFactor: 1}
}

func (u Units) withDefaults() Units {
	if u.Factor == 0 {
		u.Factor = 1
	}
	if u.EnergyUnit == 0 {
		u.EnergyUnit = 1
	}
	if u.VolumeFactor == 0 {
		u.VolumeFactor = 1
	}
	return u
}

// ReadEV parses whitespace separated "volume energy" rows. Extra columns are
// ignored; '#' starts a comment.
func ReadEV(r io.Reader) (qha.VolumeSeries, error) {
	var s qha.VolumeSeries
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return s, &ParseError{Line: line, Err: fmt.Errorf("%w: want volume and energy, got %q", ErrFormat, sc.Text())}
		}
		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return s, &ParseError{Line: line, Err: fmt.Errorf("%w: volume: %v", ErrFormat, err)}
		}
		e, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return s, &ParseError{Line: line, Err: fmt.Errorf("%w: energy: %v", ErrFormat, err)}
		}
		s.Volumes = append(s.Volumes, v)
		s.Energies = append(s.Energies, e)
	}
	if err := sc.Err(); err != nil {
		return s, err
	}
	if s.Len() == 0 {
		return s, ErrEmpty
	}
	return s, nil
}

func ReadEVFile(path string) (qha.VolumeSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return qha.VolumeSeries{}, err
	}
	defer f.Close()

	s, err := ReadEV(f)
	if err != nil {
		return s, withPath(err, path)
	}
	return s, nil
}

type thermalFile struct {
	NumModes           int            `yaml:"num_modes"`
	NumIntegratedModes *int           `yaml:"num_integrated_modes"`
	Properties         []thermalPoint `yaml:"thermal_properties"`
}

type thermalPoint struct {
	Temperature  float64 `yaml:"temperature"`
	FreeEnergy   float64 `yaml:"free_energy"`
	Entropy      float64 `yaml:"entropy"`
	HeatCapacity float64 `yaml:"heat_capacity"`
}

// ReadThermal decodes a phonopy thermal_properties.yaml. Free energy is
// converted from kJ/mol to eV; entropy and heat capacity stay in J/K/mol.
// A file without num_integrated_modes counts every mode as integrated.
func ReadThermal(r io.Reader, c qha.Constants) (qha.ThermalRecord, error) {
	var tf thermalFile
	if err := yaml.NewDecoder(r).Decode(&tf); err != nil {
		if errors.Is(err, io.EOF) {
			return qha.ThermalRecord{}, ErrEmpty
		}
		return qha.ThermalRecord{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if len(tf.Properties) == 0 {
		return qha.ThermalRecord{}, fmt.Errorf("%w: thermal_properties", ErrEmpty)
	}

	n := len(tf.Properties)
	rec := qha.ThermalRecord{
		Temperatures:       make([]float64, n),
		FreeEnergy:         make([]float64, n),
		Entropy:            make([]float64, n),
		HeatCapacity:       make([]float64, n),
		NumModes:           tf.NumModes,
		NumIntegratedModes: tf.NumModes,
	}
	if tf.NumIntegratedModes != nil {
		rec.NumIntegratedModes = *tf.NumIntegratedModes
	}
	for i, p := range tf.Properties {
		rec.Temperatures[i] = p.Temperature
		rec.FreeEnergy[i] = p.FreeEnergy / c.EvTokJmol
		rec.Entropy[i] = p.Entropy
		rec.HeatCapacity[i] = p.HeatCapacity
	}
	return rec, nil
}

func ReadThermalFile(path string, c qha.Constants) (qha.ThermalRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return qha.ThermalRecord{}, err
	}
	defer f.Close()

	rec, err := ReadThermal(f, c)
	if err != nil {
		return rec, withPath(err, path)
	}
	return rec, nil
}

// Load reads a complete run input: the e-v file plus one thermal file per
// volume, in volume order, with units applied.
func Load(evPath string, thermalPaths []string, u Units, c qha.Constants) (qha.Input, error) {
	static, err := ReadEVFile(evPath)
	if err != nil {
		return qha.Input{}, err
	}
	in := qha.Input{Static: static, Thermal: make(qha.ThermalPropertySet, 0, len(thermalPaths))}
	for _, p := range thermalPaths {
		rec, err := ReadThermalFile(p, c)
		if err != nil {
			return qha.Input{}, err
		}
		in.Thermal = append(in.Thermal, rec)
	}
	Scale(&in, u)
	return in, nil
}

// Scale applies u to in.
func Scale(in *qha.Input, u Units) {
	u = u.withDefaults()
	for i := range in.Static.Volumes {
		in.Static.Volumes[i] *= u.VolumeFactor
		in.Static.Energies[i] *= u.Factor * u.EnergyUnit
	}
	if u.Factor == 1 {
		return
	}
	for _, r := range in.Thermal {
		for i := range r.FreeEnergy {
			r.FreeEnergy[i] *= u.Factor
			r.Entropy[i] *= u.Factor
			r.HeatCapacity[i] *= u.Factor
		}
	}
}

func withPath(err error, path string) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		pe.Path = path
		return pe
	}
	return &ParseError{Path: path, Err: err}
}
