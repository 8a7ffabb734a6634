package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/qhalab/internal/eos"
	"github.com/san-kum/qhalab/internal/phonon"
	"github.com/san-kum/qhalab/internal/qha"
)

const (
	DefaultEOS   = "vinet"
	DefaultTMax  = 1000.0
	DefaultUnits = "vasp"
)

var ErrInvalid = errors.New("config: invalid")

// Config is a QHA run as written to and read from yaml. EnergyUnit and
// VolumeFactor left at zero are taken from the Units preset.
type Config struct {
	EOS                string   `yaml:"eos" json:"eos"`
	Pressure           float64  `yaml:"pressure" json:"pressure"`
	EnergyShift        float64  `yaml:"energy_shift" json:"energy_shift"`
	TMax               float64  `yaml:"t_max" json:"t_max"`
	ExcludeImaginary   bool     `yaml:"exclude_imaginary" json:"exclude_imaginary"`
	ImaginaryThreshold int      `yaml:"imaginary_threshold,omitempty" json:"imaginary_threshold,omitempty"`
	Units              string   `yaml:"units" json:"units"`
	Factor             float64  `yaml:"factor" json:"factor"`
	EnergyUnit         float64  `yaml:"energy_unit,omitempty" json:"energy_unit,omitempty"`
	VolumeFactor       float64  `yaml:"volume_factor,omitempty" json:"volume_factor,omitempty"`
	Parallel           bool     `yaml:"parallel" json:"parallel"`
	Workers            int      `yaml:"workers,omitempty" json:"workers,omitempty"`
	PolyfitWindow      int      `yaml:"polyfit_window" json:"polyfit_window"`
	EVFile             string   `yaml:"ev_file,omitempty" json:"ev_file,omitempty"`
	ThermalFiles       []string `yaml:"thermal_files,omitempty" json:"thermal_files,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		EOS:                DefaultEOS,
		TMax:               DefaultTMax,
		ImaginaryThreshold: qha.DefaultImaginaryThreshold,
		Units:              DefaultUnits,
		Factor:             1,
		PolyfitWindow:      qha.DefaultPolyfitWindow,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if _, err := eos.ParseKind(c.EOS); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Units != "" && GetPreset(c.Units) == nil {
		return fmt.Errorf("%w: unknown units preset %q (available: %v)", ErrInvalid, c.Units, ListPresets())
	}
	if c.TMax < 0 {
		return fmt.Errorf("%w: t_max must not be negative, got %g", ErrInvalid, c.TMax)
	}
	if c.Factor < 0 || c.EnergyUnit < 0 || c.VolumeFactor < 0 {
		return fmt.Errorf("%w: unit factors must be positive", ErrInvalid)
	}
	if c.PolyfitWindow < 0 {
		return fmt.Errorf("%w: polyfit_window must not be negative, got %d", ErrInvalid, c.PolyfitWindow)
	}
	return nil
}

// UnitScale resolves the preset and explicit factors.
func (c *Config) UnitScale() phonon.Units {
	u := phonon.DefaultUnits()
	if c.Factor > 0 {
		u.Factor = c.Factor
	}
	if p := GetPreset(c.Units); p != nil {
		u.EnergyUnit = p.EnergyUnit
		u.VolumeFactor = p.VolumeFactor
	}
	if c.EnergyUnit > 0 {
		u.EnergyUnit = c.EnergyUnit
	}
	if c.VolumeFactor > 0 {
		u.VolumeFactor = c.VolumeFactor
	}
	return u
}

// SolverOptions maps the run settings onto the engine options.
func (c *Config) SolverOptions() (qha.Options, error) {
	kind, err := eos.ParseKind(c.EOS)
	if err != nil {
		return qha.Options{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	opts := qha.DefaultOptions()
	opts.EOS = kind
	opts.Pressure = c.Pressure
	opts.EnergyShift = c.EnergyShift
	opts.TMax = c.TMax
	opts.ExcludeImaginary = c.ExcludeImaginary
	if c.ImaginaryThreshold > 0 {
		opts.ImaginaryThreshold = c.ImaginaryThreshold
	}
	opts.Parallel = c.Parallel
	opts.Workers = c.Workers
	if c.PolyfitWindow > 0 {
		opts.PolyfitWindow = c.PolyfitWindow
	}
	return opts, nil
}
