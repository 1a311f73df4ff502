package arrival

import (
	"math"
	"sort"
)

// OutlierRatio is the largest-to-second-largest weight ratio above which the
// largest extremum is treated as a spike and the second largest is used as
// the normalization reference.
const OutlierRatio = 5

// Normalized is an ExtremumSet reduced to prominence-weighted amplitudes.
type Normalized struct {
	// Param holds |value * prominence| divided by Reference.
	Param []float64
	// Locations are the extremum sample indices, aligned with Param.
	Locations []float64
	// Reference is the divisor used; Param[Dominant] == 1.
	Reference float64
	// Dominant is the first index whose normalized weight is exactly 1.
	Dominant int
	// Outlier is set when the second-largest weight was the reference.
	Outlier bool
}

// Len returns the number of normalized extrema.
func (n Normalized) Len() int { return len(n.Param) }

// Normalize weights every extremum by its prominence and scales the
// weights so the reference entry is exactly 1. It needs at least two
// extrema.
func Normalize(set ExtremumSet) (Normalized, error) {
	m := set.Len()
	if m < 2 {
		return Normalized{}, stageErr(StageNormalize, m, ErrInsufficientData,
			"need at least 2 extrema, got %d", m)
	}

	param := make([]float64, m)
	for i := range param {
		param[i] = math.Abs(set.Values[i] * set.Prominences[i])
		if math.IsNaN(param[i]) || math.IsInf(param[i], 0) {
			return Normalized{}, stageErr(StageNormalize, m, ErrDegenerateSignal,
				"non-finite weight at location %g", set.Locations[i])
		}
	}

	sorted := append([]float64(nil), param...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	ref, outlier := sorted[0], false
	if sorted[0]/sorted[1] > OutlierRatio {
		ref, outlier = sorted[1], true
	}
	if ref == 0 {
		return Normalized{}, stageErr(StageNormalize, m, ErrDegenerateSignal,
			"all reference weights are zero")
	}

	// Divide rather than multiply by 1/ref so the reference maps to exactly 1.
	dominant := -1
	for i := range param {
		param[i] /= ref
		if dominant < 0 && param[i] == 1 {
			dominant = i
		}
	}
	if dominant < 0 {
		return Normalized{}, stageErr(StageNormalize, m, ErrDegenerateSignal,
			"no extremum matches reference %g", ref)
	}

	locs := append([]float64(nil), set.Locations...)
	return Normalized{
		Param:     param,
		Locations: locs,
		Reference: ref,
		Dominant:  dominant,
		Outlier:   outlier,
	}, nil
}
