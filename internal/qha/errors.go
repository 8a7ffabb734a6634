package qha

import (
	"errors"
	"fmt"

	"github.com/san-kum/qhalab/internal/fit"
)

// Domain errors for QHA runs.
var (
	// ErrInputMismatch indicates inconsistent input lengths or temperature grids.
	ErrInputMismatch = errors.New("qha: input mismatch")

	// ErrAllFitsFailed indicates no temperature produced a usable EOS fit.
	ErrAllFitsFailed = errors.New("qha: EOS fit failed at every temperature")

	// ErrImaginaryModes marks a volume whose phonons have imaginary modes.
	ErrImaginaryModes = errors.New("qha: imaginary modes")

	// ErrDegenerateFit indicates fewer usable volumes than EOS parameters.
	ErrDegenerateFit = fit.ErrTooFewPoints
)

// InputMismatchError reports which part of the input is inconsistent.
type InputMismatchError struct {
	What string
	Want int
	Got  int
}

func (e *InputMismatchError) Error() string {
	return fmt.Sprintf("qha: input mismatch: %s: want %d, got %d", e.What, e.Want, e.Got)
}

func (e *InputMismatchError) Unwrap() error { return ErrInputMismatch }

// FittingError wraps an EOS fit failure with the temperature it occurred at.
type FittingError struct {
	Index       int
	Temperature float64
	Wrapped     error
}

func (e *FittingError) Error() string {
	return fmt.Sprintf("qha: fit at T=%g K (index %d): %v", e.Temperature, e.Index, e.Wrapped)
}

func (e *FittingError) Unwrap() error { return e.Wrapped }

// ImaginaryModeWarning flags a volume kept in the fit despite imaginary modes.
type ImaginaryModeWarning struct {
	Index  int
	Volume float64
	Count  int
}

func (w *ImaginaryModeWarning) Error() string {
	return fmt.Sprintf("qha: volume %g (index %d) has %d imaginary modes", w.Volume, w.Index, w.Count)
}

func (w *ImaginaryModeWarning) Unwrap() error { return ErrImaginaryModes }

// DegenerateFitWarning reports that too few volumes survived filtering.
type DegenerateFitWarning struct {
	Volumes int
}

func (w *DegenerateFitWarning) Error() string {
	return fmt.Sprintf("qha: only %d usable volumes, need %d", w.Volumes, fit.MinPoints)
}

func (w *DegenerateFitWarning) Unwrap() error { return ErrDegenerateFit }
