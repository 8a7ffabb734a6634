package fit

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Poly is a polynomial in the scaled variable u = (x - Center) / Scale.
// Coeffs are ordered from the constant term upward.
type Poly struct {
	Coeffs []float64
	Center float64
	Scale  float64
}

// Polyfit returns the least-squares polynomial of the given degree through
// (x, y). The abscissae are centred and scaled to [-1, 1] before the
// Vandermonde system is solved by QR.
func Polyfit(x, y []float64, degree int) (Poly, error) {
	if len(x) != len(y) {
		return Poly{}, ErrLengthMismatch
	}
	if degree < 0 || len(x) < degree+1 {
		return Poly{}, ErrTooFewPoints
	}

	lo, hi := floats.Min(x), floats.Max(x)
	center := 0.5 * (lo + hi)
	scale := 0.5 * (hi - lo)
	if scale == 0 {
		if degree > 0 {
			return Poly{}, ErrTooFewPoints
		}
		scale = 1
	}

	cols := degree + 1
	a := mat.NewDense(len(x), cols, nil)
	for i, xi := range x {
		u := (xi - center) / scale
		pow := 1.0
		for j := 0; j < cols; j++ {
			a.Set(i, j, pow)
			pow *= u
		}
	}

	var c mat.VecDense
	if err := c.SolveVec(a, mat.NewVecDense(len(y), append([]float64(nil), y...))); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return Poly{}, err
		}
	}

	coeffs := make([]float64, cols)
	for j := range coeffs {
		coeffs[j] = c.AtVec(j)
		if !isFinite(coeffs[j]) {
			return Poly{}, ErrNonFinite
		}
	}
	return Poly{Coeffs: coeffs, Center: center, Scale: scale}, nil
}

func (p Poly) Degree() int { return len(p.Coeffs) - 1 }

// Eval evaluates the polynomial at x by Horner's rule.
func (p Poly) Eval(x float64) float64 {
	return horner(p.Coeffs, (x-p.Center)/p.Scale)
}

// Derivative returns the order-th derivative with respect to x.
func (p Poly) Derivative(x float64, order int) float64 {
	if order == 0 {
		return p.Eval(x)
	}
	c := append([]float64(nil), p.Coeffs...)
	for k := 0; k < order; k++ {
		if len(c) <= 1 {
			return 0
		}
		d := make([]float64, len(c)-1)
		for j := 1; j < len(c); j++ {
			d[j-1] = float64(j) * c[j]
		}
		c = d
	}
	return horner(c, (x-p.Center)/p.Scale) / math.Pow(p.Scale, float64(order))
}

func horner(c []float64, u float64) float64 {
	v := 0.0
	for j := len(c) - 1; j >= 0; j-- {
		v = v*u + c[j]
	}
	return v
}
