package qha

import (
	"errors"
	"fmt"

	"github.com/san-kum/qhalab/internal/fit"
)

type AnomalyKind string

const (
	AnomalyFitFailed            AnomalyKind = "fit_failed"
	AnomalyNonPositiveBulk      AnomalyKind = "non_positive_bulk_modulus"
	AnomalyVolumeOutsideSamples AnomalyKind = "volume_outside_samples"
	AnomalyNegativeHeatCapacity AnomalyKind = "negative_heat_capacity"
)

// heatCapacityNoise (J/K/mol) absorbs finite-difference noise near T = 0.
const heatCapacityNoise = 1e-6

// Anomaly is a physicality violation observed at one temperature.
type Anomaly struct {
	Index       int         `json:"index"`
	Temperature float64     `json:"temperature"`
	Kind        AnomalyKind `json:"kind"`
	Detail      string      `json:"detail"`
}

func (a Anomaly) String() string {
	return fmt.Sprintf("T=%g K: %s (%s)", a.Temperature, a.Kind, a.Detail)
}

// Anomalies lists fits a stable solid should not produce: failed or
// non-positive bulk moduli, minima extrapolated past the sampled volumes and
// negative Cp or Cv.
func (r *Result) Anomalies() []Anomaly {
	var out []Anomaly
	if len(r.Volumes) == 0 {
		return out
	}
	lo, hi := r.Volumes[0], r.Volumes[0]
	for _, v := range r.Volumes {
		lo, hi = min(lo, v), max(hi, v)
	}

	for i, f := range r.Fits {
		t := r.Temperatures[i]
		if !f.OK() {
			kind := AnomalyFitFailed
			if errors.Is(f.Err, fit.ErrImplausibleBulkModulus) {
				kind = AnomalyNonPositiveBulk
			}
			out = append(out, Anomaly{Index: i, Temperature: t, Kind: kind, Detail: f.Err.Error()})
			continue
		}
		if f.Params.B0 <= 0 {
			out = append(out, Anomaly{Index: i, Temperature: t, Kind: AnomalyNonPositiveBulk, Detail: fmt.Sprintf("B0=%g", f.Params.B0)})
		}
		if v := f.Params.V0; v < lo || v > hi {
			out = append(out, Anomaly{Index: i, Temperature: t, Kind: AnomalyVolumeOutsideSamples, Detail: fmt.Sprintf("V0=%g not in [%g, %g]", v, lo, hi)})
		}
		if i < len(r.HeatCapacityP) && r.HeatCapacityP[i] < -heatCapacityNoise {
			out = append(out, Anomaly{Index: i, Temperature: t, Kind: AnomalyNegativeHeatCapacity, Detail: fmt.Sprintf("Cp=%g", r.HeatCapacityP[i])})
		}
		if i < len(r.HeatCapacityV) && r.HeatCapacityV[i] < -heatCapacityNoise {
			out = append(out, Anomaly{Index: i, Temperature: t, Kind: AnomalyNegativeHeatCapacity, Detail: fmt.Sprintf("Cv=%g", r.HeatCapacityV[i])})
		}
	}
	return out
}
