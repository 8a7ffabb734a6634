package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/qhalab/internal/eos"
)

// Policy defaults for EOS fitting. They are carried in Options so callers can
// override them; the values themselves have no derivation beyond practice.
const (
	DefaultB0             = 1.0 // eV/Å³
	DefaultB0Prime        = 4.0
	DefaultMinVolumeRatio = 0.5
	DefaultMaxVolumeRatio = 2.0
	DefaultMaxIterations  = 500

	// MinPoints is the number of free EOS parameters.
	MinPoints = 4
)

type Options struct {
	MaxIterations  int
	DefaultB0      float64
	DefaultB0Prime float64
	MinVolumeRatio float64
	MaxVolumeRatio float64

	// InitialGuess replaces the data-derived starting point when set.
	InitialGuess *eos.Params
}

func DefaultOptions() Options {
	return Options{
		MaxIterations:  DefaultMaxIterations,
		DefaultB0:      DefaultB0,
		DefaultB0Prime: DefaultB0Prime,
		MinVolumeRatio: DefaultMinVolumeRatio,
		MaxVolumeRatio: DefaultMaxVolumeRatio,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.DefaultB0 <= 0 {
		o.DefaultB0 = d.DefaultB0
	}
	if o.DefaultB0Prime == 0 {
		o.DefaultB0Prime = d.DefaultB0Prime
	}
	if o.MinVolumeRatio <= 0 {
		o.MinVolumeRatio = d.MinVolumeRatio
	}
	if o.MaxVolumeRatio <= 0 {
		o.MaxVolumeRatio = d.MaxVolumeRatio
	}
	return o
}

type Result struct {
	Params     eos.Params
	SSE        float64
	Iterations int
}

// InitialGuess derives a starting point from the samples: V0 and E0 from the
// lowest sampled energy, B0 from the curvature of a quadratic pre-fit.
func InitialGuess(volumes, energies []float64, opts Options) eos.Params {
	i := floats.MinIdx(energies)
	guess := eos.Params{
		E0:      energies[i],
		B0:      opts.DefaultB0,
		B0Prime: opts.DefaultB0Prime,
		V0:      volumes[i],
	}
	quad, err := Polyfit(volumes, energies, 2)
	if err != nil {
		return guess
	}
	if b0 := guess.V0 * quad.Derivative(guess.V0, 2); b0 > 0 && isFinite(b0) {
		guess.B0 = b0
	}
	return guess
}

// EOS fits kind to (volumes, energies) and checks the result is physical.
func EOS(kind eos.Kind, volumes, energies []float64, opts Options) (Result, error) {
	if len(volumes) != len(energies) {
		return Result{}, ErrLengthMismatch
	}
	if len(volumes) < MinPoints {
		return Result{}, fmt.Errorf("%w: have %d, need %d", ErrTooFewPoints, len(volumes), MinPoints)
	}
	for i := range volumes {
		if !isFinite(volumes[i]) || !isFinite(energies[i]) {
			return Result{}, fmt.Errorf("%w: sample %d", ErrNonFinite, i)
		}
	}
	opts = opts.withDefaults()

	guess := InitialGuess(volumes, energies, opts)
	if opts.InitialGuess != nil && opts.InitialGuess.IsValid() {
		guess = *opts.InitialGuess
	}

	model := kind.Model()
	problem := Problem{
		M: len(volumes),
		Residuals: func(dst, x []float64) {
			p := eos.FromSlice(x)
			for i, v := range volumes {
				dst[i] = model.Energy(v, p) - energies[i]
			}
		},
	}

	settings := DefaultLMSettings()
	settings.MaxIterations = opts.MaxIterations
	lm, err := LevenbergMarquardt(problem, guess.Slice(), settings)
	res := Result{Params: eos.FromSlice(lm.X), SSE: lm.SSE, Iterations: lm.Iterations}
	if err != nil {
		return res, err
	}
	if err := checkPlausible(res.Params, volumes, opts); err != nil {
		return res, err
	}
	return res, nil
}

func checkPlausible(p eos.Params, volumes []float64, opts Options) error {
	if !p.IsValid() {
		return ErrNonFinite
	}
	if p.B0 <= 0 {
		return fmt.Errorf("%w: B0=%g", ErrImplausibleBulkModulus, p.B0)
	}
	lo := floats.Min(volumes) * opts.MinVolumeRatio
	hi := floats.Max(volumes) * opts.MaxVolumeRatio
	if p.V0 < lo || p.V0 > hi || math.IsNaN(p.V0) {
		return fmt.Errorf("%w: V0=%g not in [%g, %g]", ErrImplausibleVolume, p.V0, lo, hi)
	}
	return nil
}
