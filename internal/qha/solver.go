package qha

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/qhalab/internal/eos"
	"github.com/san-kum/qhalab/internal/fit"
)

const (
	DefaultPolyfitWindow        = 5
	DefaultPolyfitDegree        = 4
	DefaultInterpolationDegree  = 4
	DefaultReferenceTemperature = 300.0
)

type Options struct {
	EOS         eos.Kind
	Pressure    float64 // GPa
	EnergyShift float64 // eV, subtracted from static energies
	TMax        float64 // K, zero keeps the whole grid

	ExcludeImaginary   bool
	ImaginaryThreshold int

	// Parallel fans the per-temperature fits out over goroutines. Each fit
	// then starts from its own data-derived guess instead of the previous
	// temperature's parameters.
	Parallel bool
	Workers  int

	PolyfitWindow        int
	PolyfitDegree        int
	InterpolationDegree  int
	ReferenceTemperature float64

	Fit       fit.Options
	Constants Constants
	Logger    *zap.Logger
}

func DefaultOptions() Options {
	return Options{
		EOS:                  eos.Default,
		ImaginaryThreshold:   DefaultImaginaryThreshold,
		PolyfitWindow:        DefaultPolyfitWindow,
		PolyfitDegree:        DefaultPolyfitDegree,
		InterpolationDegree:  DefaultInterpolationDegree,
		ReferenceTemperature: DefaultReferenceTemperature,
		Fit:                  fit.DefaultOptions(),
		Constants:            DefaultConstants(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ImaginaryThreshold <= 0 {
		o.ImaginaryThreshold = d.ImaginaryThreshold
	}
	if o.PolyfitWindow <= 0 {
		o.PolyfitWindow = d.PolyfitWindow
	}
	if o.PolyfitDegree <= 0 {
		o.PolyfitDegree = d.PolyfitDegree
	}
	if o.InterpolationDegree <= 0 {
		o.InterpolationDegree = d.InterpolationDegree
	}
	if o.ReferenceTemperature <= 0 {
		o.ReferenceTemperature = d.ReferenceTemperature
	}
	if o.Constants == (Constants{}) {
		o.Constants = d.Constants
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

type Solver struct {
	opts Options
	log  *zap.Logger
}

func NewSolver(opts Options) *Solver {
	opts = opts.withDefaults()
	return &Solver{opts: opts, log: opts.Logger}
}

func (s *Solver) Options() Options { return s.opts }

// Validate checks the structural invariants of in.
func Validate(in Input) error {
	n := in.Static.Len()
	if len(in.Static.Energies) != n {
		return &InputMismatchError{What: "electronic energies", Want: n, Got: len(in.Static.Energies)}
	}
	if len(in.Thermal) != n {
		return &InputMismatchError{What: "thermal property records", Want: n, Got: len(in.Thermal)}
	}
	if n == 0 {
		return &InputMismatchError{What: "volumes", Want: fit.MinPoints, Got: 0}
	}
	grid := in.Thermal[0].Temperatures
	if len(grid) == 0 {
		return &InputMismatchError{What: "temperatures", Want: 1, Got: 0}
	}
	for i := 1; i < len(grid); i++ {
		if !(grid[i] > grid[i-1]) {
			return fmt.Errorf("%w: temperatures not strictly ascending at index %d", ErrInputMismatch, i)
		}
	}
	for i, r := range in.Thermal {
		if len(r.Temperatures) != len(grid) {
			return &InputMismatchError{What: fmt.Sprintf("temperatures of record %d", i), Want: len(grid), Got: len(r.Temperatures)}
		}
		for j, t := range r.Temperatures {
			if t != grid[j] {
				return fmt.Errorf("%w: record %d temperature %d is %g, want %g", ErrInputMismatch, i, j, t, grid[j])
			}
		}
		for _, series := range []struct {
			name string
			vals []float64
		}{
			{"free energy", r.FreeEnergy},
			{"entropy", r.Entropy},
			{"heat capacity", r.HeatCapacity},
		} {
			if len(series.vals) != len(grid) {
				return &InputMismatchError{What: fmt.Sprintf("%s of record %d", series.name, i), Want: len(grid), Got: len(series.vals)}
			}
		}
	}
	return nil
}

// Solve runs the full QHA chain: validation, imaginary-mode filtering,
// per-temperature EOS fits and the thermodynamic derivatives.
func (s *Solver) Solve(ctx context.Context, in Input) (*Result, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}

	filtered := FilterImaginary(in, s.opts.ImaginaryThreshold, s.opts.ExcludeImaginary)
	for _, idx := range filtered.Excluded {
		s.log.Info("excluding volume with imaginary modes",
			zap.Int("index", idx),
			zap.Float64("volume", in.Static.Volumes[idx]),
			zap.Int("imaginary", in.Thermal[idx].ImaginaryCount()))
	}
	for _, w := range filtered.Warnings {
		s.log.Warn("keeping volume with imaginary modes", zap.Error(w))
	}

	view := s.prepare(filtered.Input)
	temps := view.Temperatures()

	res := &Result{
		EOS:          s.opts.EOS,
		Pressure:     s.opts.Pressure,
		Constants:    s.opts.Constants,
		Temperatures: append([]float64(nil), temps...),
		Volumes:      view.Static.Volumes,
		Helmholtz:    s.helmholtz(view),
		Excluded:     filtered.Excluded,
		Warnings:     filtered.Warnings,
	}

	fits, err := s.fitAll(ctx, res)
	if err != nil {
		return nil, err
	}
	res.Fits = fits

	ok := 0
	for _, f := range fits {
		if f.OK() {
			ok++
			continue
		}
		res.Failures = append(res.Failures, f.Err)
	}
	s.log.Info("eos fits complete",
		zap.Stringer("eos", s.opts.EOS),
		zap.Int("temperatures", len(fits)),
		zap.Int("failed", len(res.Failures)),
		zap.Int("volumes", len(res.Volumes)))

	if ok == 0 {
		return nil, fmt.Errorf("%w: %w", ErrAllFitsFailed, errors.Join(res.Failures...))
	}

	derive(res, view, s.opts)
	return res, nil
}

// prepare truncates the grid at TMax and applies the energy shift.
func (s *Solver) prepare(in Input) Input {
	if s.opts.TMax > 0 {
		grid := in.Temperatures()
		n := 0
		for n < len(grid) && grid[n] <= s.opts.TMax {
			n++
		}
		if n == 0 {
			n = 1
		}
		for i := range in.Thermal {
			in.Thermal[i] = in.Thermal[i].truncate(n)
		}
	}
	if s.opts.EnergyShift != 0 {
		for i := range in.Static.Energies {
			in.Static.Energies[i] -= s.opts.EnergyShift
		}
	}
	return in
}

// helmholtz builds F(V,T) = E_el(V) + F_ph(V,T) + P·V for every temperature.
func (s *Solver) helmholtz(in Input) [][]float64 {
	p := s.opts.Constants.GPaToEvA3(s.opts.Pressure)
	temps := in.Temperatures()
	out := make([][]float64, len(temps))
	for t := range temps {
		row := make([]float64, in.Static.Len())
		for v := range row {
			row[v] = in.Static.Energies[v] + in.Thermal[v].FreeEnergy[t] + p*in.Static.Volumes[v]
		}
		out[t] = row
	}
	return out
}

func (s *Solver) fitAll(ctx context.Context, res *Result) ([]TemperatureFit, error) {
	fits := make([]TemperatureFit, len(res.Temperatures))

	if len(res.Volumes) < fit.MinPoints {
		cause := &DegenerateFitWarning{Volumes: len(res.Volumes)}
		for i, t := range res.Temperatures {
			fits[i] = TemperatureFit{Temperature: t, Params: nanParams(), Err: &FittingError{Index: i, Temperature: t, Wrapped: cause}}
		}
		return fits, nil
	}

	if s.opts.Parallel {
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.Workers)
		for i := range res.Temperatures {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				fits[i] = s.fitOne(i, res, nil)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return fits, nil
	}

	var seed *eos.Params
	for i := range res.Temperatures {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		fits[i] = s.fitOne(i, res, seed)
		if fits[i].OK() {
			p := fits[i].Params
			seed = &p
		}
	}
	return fits, nil
}

func (s *Solver) fitOne(i int, res *Result, seed *eos.Params) TemperatureFit {
	t := res.Temperatures[i]
	opts := s.opts.Fit
	opts.InitialGuess = seed

	r, err := fit.EOS(s.opts.EOS, res.Volumes, res.Helmholtz[i], opts)
	if err != nil && seed != nil {
		// The seed can sit in a poor basin after a sharp change; retry from the data.
		opts.InitialGuess = nil
		r, err = fit.EOS(s.opts.EOS, res.Volumes, res.Helmholtz[i], opts)
	}
	if err != nil {
		s.log.Debug("eos fit failed", zap.Float64("temperature", t), zap.Error(err))
		return TemperatureFit{
			Temperature: t,
			Params:      nanParams(),
			Err:         &FittingError{Index: i, Temperature: t, Wrapped: err},
		}
	}
	return TemperatureFit{Temperature: t, Params: r.Params, SSE: r.SSE, Iterations: r.Iterations}
}

func nanParams() eos.Params {
	return eos.Params{E0: math.NaN(), B0: math.NaN(), B0Prime: math.NaN(), V0: math.NaN()}
}
