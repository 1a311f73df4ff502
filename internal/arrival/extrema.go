package arrival

import "math"

// MinSignalLength is the shortest signal FindExtrema accepts.
const MinSignalLength = 3

// boundaryStartLocation is the location assigned to the synthetic extremum
// bracketing the start of the signal. It is 1, not 0; the width of the first
// real extremum and every threshold downstream were tuned against it.
const boundaryStartLocation = 1

// ExtremumSet holds the local peaks and troughs of a signal as four
// parallel slices ordered by increasing location.
type ExtremumSet struct {
	// Values are the signal samples at each extremum.
	Values []float64
	// Locations are the sample indices of the extrema, stored as floats.
	Locations []float64
	// Widths span from the previous extremum to the next one.
	Widths []float64
	// Prominences are the smaller of the two height differences to the
	// neighbouring extrema.
	Prominences []float64
}

// Len returns the number of extrema in the set.
func (s ExtremumSet) Len() int { return len(s.Locations) }

// Empty reports whether no extrema were found.
func (s ExtremumSet) Empty() bool { return len(s.Locations) == 0 }

// FindExtrema returns every interior sample k where the slope into k and
// the slope out of k have opposite signs or one of them is zero. The first
// and last samples are never extrema. Plateaus are not merged and infinite
// values are not filtered.
//
// A constant or strictly monotonic signal yields an empty set and a nil
// error; callers that need extrema must check Empty.
func FindExtrema(signal []float64) (ExtremumSet, error) {
	n := len(signal)
	if n < MinSignalLength {
		return ExtremumSet{}, stageErr(StageExtrema, n, ErrInsufficientData,
			"need at least %d samples", MinSignalLength)
	}

	locs := make([]int, 0, n/2)
	flat := true
	for k := 1; k < n-1; k++ {
		in := signal[k] - signal[k-1]
		out := signal[k+1] - signal[k]
		if in != 0 || out != 0 {
			flat = false
		}
		if in*out <= 0 {
			locs = append(locs, k)
		}
	}

	m := len(locs)
	if flat {
		m = 0
	}
	set := ExtremumSet{
		Values:      make([]float64, m),
		Locations:   make([]float64, m),
		Widths:      make([]float64, m),
		Prominences: make([]float64, m),
	}
	if m == 0 {
		return set, nil
	}

	// Bracketed copies: index 0 and m+1 are the synthetic boundaries.
	padLoc := make([]float64, m+2)
	padVal := make([]float64, m+2)
	padLoc[0], padVal[0] = boundaryStartLocation, signal[0]
	padLoc[m+1], padVal[m+1] = float64(n), signal[n-1]
	for i, k := range locs {
		padLoc[i+1] = float64(k)
		padVal[i+1] = signal[k]
	}

	for j := 1; j <= m; j++ {
		left := math.Abs(padVal[j] - padVal[j-1])
		right := math.Abs(padVal[j+1] - padVal[j])

		set.Values[j-1] = padVal[j]
		set.Locations[j-1] = padLoc[j]
		set.Widths[j-1] = padLoc[j+1] - padLoc[j-1]
		set.Prominences[j-1] = min(left, right)
	}
	return set, nil
}

