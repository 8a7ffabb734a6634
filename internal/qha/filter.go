package qha

// DefaultImaginaryThreshold is the imaginary-mode count at which a volume is
// treated as unstable. Up to three missing modes are tolerated as acoustic
// sum-rule slack.
const DefaultImaginaryThreshold = 4

// FilterResult is the reduced view produced by FilterImaginary.
type FilterResult struct {
	Input    Input
	Kept     []int
	Excluded []int
	Warnings []error
}

// Flagged reports whether a record's imaginary-mode count reaches threshold.
func Flagged(r ThermalRecord, threshold int) bool {
	return r.ImaginaryCount() >= threshold
}

// FilterImaginary flags volumes with at least threshold imaginary modes. With
// exclude set, flagged volumes are dropped from the returned copy; otherwise
// all volumes are kept and each flagged one yields an ImaginaryModeWarning.
func FilterImaginary(in Input, threshold int, exclude bool) FilterResult {
	if threshold <= 0 {
		threshold = DefaultImaginaryThreshold
	}
	var res FilterResult
	for i, r := range in.Thermal {
		if !Flagged(r, threshold) {
			res.Kept = append(res.Kept, i)
			continue
		}
		if exclude {
			res.Excluded = append(res.Excluded, i)
			continue
		}
		res.Kept = append(res.Kept, i)
		res.Warnings = append(res.Warnings, &ImaginaryModeWarning{
			Index:  i,
			Volume: in.Static.Volumes[i],
			Count:  r.ImaginaryCount(),
		})
	}
	res.Input = in.Subset(res.Kept)
	return res
}
