package fit

import "errors"

var (
	// ErrTooFewPoints indicates fewer samples than free parameters.
	ErrTooFewPoints = errors.New("fit: too few points for the number of parameters")

	// ErrLengthMismatch indicates abscissa and ordinate slices of different length.
	ErrLengthMismatch = errors.New("fit: x and y lengths differ")

	// ErrNoConvergence indicates the optimizer hit its iteration budget.
	ErrNoConvergence = errors.New("fit: optimizer did not converge")

	// ErrNonFinite indicates a residual or parameter became NaN or Inf.
	ErrNonFinite = errors.New("fit: non-finite residual")

	// ErrImplausibleVolume indicates a fitted V0 far outside the sampled range.
	ErrImplausibleVolume = errors.New("fit: equilibrium volume outside plausible range")

	// ErrImplausibleBulkModulus indicates a non-positive fitted B0.
	ErrImplausibleBulkModulus = errors.New("fit: bulk modulus not positive")
)
