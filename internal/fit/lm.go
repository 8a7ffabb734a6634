package fit

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Problem is a nonlinear least-squares problem with M residuals.
type Problem struct {
	M         int
	Residuals func(dst, x []float64)
}

type LMSettings struct {
	MaxIterations  int
	StepTolerance  float64
	FuncTolerance  float64
	InitialDamping float64
}

func DefaultLMSettings() LMSettings {
	return LMSettings{
		MaxIterations:  500,
		StepTolerance:  1e-11,
		FuncTolerance:  1e-16,
		InitialDamping: 1e-3,
	}
}

type LMResult struct {
	X          []float64
	SSE        float64
	Iterations int
}

const (
	minDamping = 1e-15
	maxDamping = 1e16
)

// LevenbergMarquardt minimizes the sum of squared residuals starting from x0.
// The damping term is scaled by diag(JᵀJ) so parameters of very different
// magnitude (energies, volumes) share one step rule.
func LevenbergMarquardt(p Problem, x0 []float64, s LMSettings) (LMResult, error) {
	n := len(x0)
	if p.M < n {
		return LMResult{}, ErrTooFewPoints
	}
	if s.MaxIterations <= 0 {
		s.MaxIterations = DefaultLMSettings().MaxIterations
	}

	x := make([]float64, n)
	copy(x, x0)
	r := make([]float64, p.M)
	p.Residuals(r, x)
	sse := floats.Dot(r, r)
	if !isFinite(sse) {
		return LMResult{X: x, SSE: sse}, ErrNonFinite
	}

	jac := mat.NewDense(p.M, n, nil)
	jsettings := &fd.JacobianSettings{Formula: fd.Central}
	trial := make([]float64, n)
	rTrial := make([]float64, p.M)
	lambda := s.InitialDamping

	for iter := 1; iter <= s.MaxIterations; iter++ {
		if sse == 0 {
			return LMResult{X: x, SSE: sse, Iterations: iter - 1}, nil
		}

		fd.Jacobian(jac, p.Residuals, x, jsettings)

		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		var grad mat.VecDense
		grad.MulVec(jac.T(), mat.NewVecDense(p.M, r))

		accepted := false
		for !accepted {
			if lambda > maxDamping {
				// No downhill step exists at machine precision.
				return LMResult{X: x, SSE: sse, Iterations: iter}, nil
			}

			damped := mat.DenseCopyOf(&jtj)
			for i := 0; i < n; i++ {
				d := jtj.At(i, i)
				if d < 1e-300 {
					d = 1e-300
				}
				damped.Set(i, i, d*(1+lambda))
			}

			var step mat.VecDense
			if err := step.SolveVec(damped, &grad); err != nil {
				var cond mat.Condition
				if !errors.As(err, &cond) {
					lambda *= 10
					continue
				}
			}

			for i := range trial {
				trial[i] = x[i] - step.AtVec(i)
			}
			p.Residuals(rTrial, trial)
			sseTrial := floats.Dot(rTrial, rTrial)

			if !isFinite(sseTrial) || sseTrial >= sse {
				lambda *= 10
				continue
			}
			accepted = true

			small := true
			for i := range x {
				if math.Abs(trial[i]-x[i]) > s.StepTolerance*(math.Abs(x[i])+s.StepTolerance) {
					small = false
					break
				}
			}
			decrease := sse - sseTrial

			copy(x, trial)
			copy(r, rTrial)
			sse = sseTrial
			lambda = math.Max(lambda/10, minDamping)

			if small || decrease <= s.FuncTolerance*sse {
				return LMResult{X: x, SSE: sse, Iterations: iter}, nil
			}
		}
	}
	return LMResult{X: x, SSE: sse, Iterations: s.MaxIterations}, ErrNoConvergence
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
