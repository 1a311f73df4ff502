package arrival

// DetectFlexureArrival runs the flexural-mode detector with
// DefaultThresholdParams.
func DetectFlexureArrival(signal []float64) (int, error) {
	return DefaultThresholdParams().DetectFlexure(signal)
}

// DetectFlexure returns the sample index of the flexural-mode arrival in
// signal: the location of the first extremum whose normalized weight
// exceeds the estimated noise threshold. It returns 0 when no extremum
// qualifies or when the very first extremum already does.
func (p ThresholdParams) DetectFlexure(signal []float64) (int, error) {
	set, err := FindExtrema(signal)
	if err != nil {
		return 0, err
	}
	norm, err := Normalize(set)
	if err != nil {
		return 0, withLength(err, len(signal))
	}
	thresh, err := p.Estimate(norm.Param)
	if err != nil {
		return 0, withLength(err, len(signal))
	}
	return flexureArrival(norm, thresh), nil
}

func flexureArrival(norm Normalized, thresh float64) int {
	for i, v := range norm.Param {
		if v > thresh {
			if i == 0 {
				return 0
			}
			return int(norm.Locations[i])
		}
	}
	return 0
}
