package arrival

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Default extensional-mode detector settings.
const (
	DefaultNoiseMultiplier = 10
	DefaultNoiseMin        = 1e-6
)

// noiseRegionDivisor places the end of the pre-arrival noise region at a
// quarter of the dominant extremum's location, but never before
// len(signal)/minNoiseRegionDivisor.
const (
	noiseRegionDivisor    = 4
	minNoiseRegionDivisor = 40
)

// ExtensionParams configures the extensional-mode detector.
type ExtensionParams struct {
	// NoiseMultiplier scales the reference noise level to the level a
	// segment mean must exceed to count as a definite arrival.
	NoiseMultiplier float64
	// NoiseMin is the lowest reference noise level used, for signals whose
	// pre-arrival region is practically silent.
	NoiseMin float64
}

// DefaultExtensionParams returns the tuned detector settings.
func DefaultExtensionParams() ExtensionParams {
	return ExtensionParams{
		NoiseMultiplier: DefaultNoiseMultiplier,
		NoiseMin:        DefaultNoiseMin,
	}
}

// Validate checks the parameters are usable.
func (p ExtensionParams) Validate() error {
	if p.NoiseMultiplier < 1 {
		return fmt.Errorf("noise multiplier must be at least 1, got %g", p.NoiseMultiplier)
	}
	if p.NoiseMin < 0 {
		return fmt.Errorf("noise min must be non-negative, got %g", p.NoiseMin)
	}
	return nil
}

// extensionReference holds the levels the extensional search compares
// against.
type extensionReference struct {
	dominant int
	noiseLim float64
	noiseLoc int // last extremum inside the noise region
	refNoise float64
	refMax   float64
}

// segment is the mean of one run of consecutive weights.
type segment struct {
	start int
	mean  float64
}

// segmentScan is the result of partitioning the weights after the noise
// reference has been fixed.
type segmentScan struct {
	segments []segment
	// crossed is set when the scan stopped on a segment above refMax.
	crossed bool
}

// DetectExtensionArrival runs the extensional-mode detector with
// DefaultExtensionParams.
func DetectExtensionArrival(signal []float64) (int, error) {
	return DefaultExtensionParams().Detect(signal)
}

// Detect returns the sample index of the extensional-mode arrival in
// signal, or 0 when no arrival is found.
func (p ExtensionParams) Detect(signal []float64) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	set, err := FindExtrema(signal)
	if err != nil {
		return 0, err
	}
	norm, err := Normalize(set)
	if err != nil {
		return 0, withLength(err, len(signal))
	}
	return p.arrival(norm, len(signal))
}

func (p ExtensionParams) arrival(norm Normalized, n int) (int, error) {
	ref, err := p.reference(norm, n)
	if err != nil {
		return 0, err
	}
	scan := scanSegments(norm.Param, ref)
	if scan.crossed {
		return strongArrival(norm.Param, norm.Locations, scan, ref), nil
	}
	return weakArrival(norm.Param, norm.Locations, scan, ref), nil
}

// reference measures the noise level over the extrema that precede the
// dominant one by a wide margin.
func (p ExtensionParams) reference(norm Normalized, n int) (extensionReference, error) {
	locs := norm.Locations
	ref := extensionReference{dominant: norm.Dominant}
	ref.noiseLim = math.Max(
		math.Floor(locs[norm.Dominant]/noiseRegionDivisor),
		math.Floor(float64(n)/minNoiseRegionDivisor),
	)

	ref.noiseLoc = -1
	for i, loc := range locs {
		if loc <= ref.noiseLim {
			ref.noiseLoc = i
		}
	}
	// The first extremum is excluded from the noise statistics, so two are
	// needed before the window is non-empty.
	if ref.noiseLoc < 2 {
		return ref, stageErr(StageNoiseRegion, n, ErrInsufficientData,
			"%d extrema at or before location %g", ref.noiseLoc+1, ref.noiseLim)
	}

	noise := norm.Param[1:ref.noiseLoc]
	ref.refNoise = math.Max(stat.Mean(noise, nil), p.NoiseMin)
	ref.refMax = math.Max(p.NoiseMultiplier*ref.refNoise, floats.Max(noise))
	return ref, nil
}

// scanSegments averages runs of noiseLoc/2 weights, leaving one weight
// between consecutive runs, until the weights run out or a run exceeds
// refMax.
func scanSegments(param []float64, ref extensionReference) segmentScan {
	half := ref.noiseLoc / 2
	var scan segmentScan
	start, end := 0, half
	for {
		mean := stat.Mean(param[start:end], nil)
		scan.segments = append(scan.segments, segment{start: start, mean: mean})
		start = end + 1
		end = start + half
		if mean > ref.refMax {
			scan.crossed = true
			break
		}
		if end > len(param) {
			break
		}
	}
	return scan
}

// lastQuiet returns the index of the last segment whose mean is below
// refNoise, or -1.
func (s segmentScan) lastQuiet(refNoise float64) int {
	for k := len(s.segments) - 1; k >= 0; k-- {
		if s.segments[k].mean < refNoise {
			return k
		}
	}
	return -1
}

// weakArrival handles signals that never rise above refMax: it skips past
// the last quiet segment and takes the first weight above the noise level.
func weakArrival(param, locs []float64, scan segmentScan, ref extensionReference) int {
	k := scan.lastQuiet(ref.refNoise)
	if k < 1 {
		k = 1
	}
	if k >= len(scan.segments) {
		k = len(scan.segments) - 1
	}

	cut := scan.segments[k].start + 1
	if cut >= len(param) {
		return 0
	}
	param, locs = param[cut:], locs[cut:]

	for i, v := range param {
		if v > ref.refNoise {
			if i == 0 {
				return 0
			}
			return int(locs[i])
		}
	}
	return 0
}

// strongArrival handles signals with a definite arrival: it bounds the
// search between the last quiet segment and the first weight above refMax,
// then takes the extremum right after the last weight still at noise level.
func strongArrival(param, locs []float64, scan segmentScan, ref extensionReference) int {
	cut := 0
	if k := scan.lastQuiet(ref.refNoise); k >= 0 {
		cut = scan.segments[k].start
	}
	param, locs = param[cut:], locs[cut:]

	peak := -1
	for i, v := range param {
		if v > ref.refMax {
			peak = i
			break
		}
	}
	if peak < 0 {
		return 0
	}
	param, locs = param[:peak+1], locs[:peak+1]

	quiet := -1
	for i, v := range param {
		if v <= ref.refNoise {
			quiet = i
		}
	}

	arrival := locs[min(quiet+1, len(locs)-1)]
	if arrival == 0 {
		if len(locs) >= 2 {
			arrival = locs[len(locs)-2]
		} else {
			arrival = locs[len(locs)-1]
		}
	}
	return int(arrival)
}

// withLength rewrites the length recorded in a StageError to the length of
// the original signal.
func withLength(err error, n int) error {
	var se *StageError
	if errors.As(err, &se) {
		return &StageError{Stage: se.Stage, Length: n, Err: se.Err}
	}
	return err
}
