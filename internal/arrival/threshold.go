package arrival

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Default noise threshold estimator settings.
const (
	DefaultThresholdWindow      = 25
	DefaultThresholdStep        = 20
	DefaultThresholdNoiseFloor  = 1e-6
	DefaultThresholdStreakLimit = 2
)

// ThresholdParams configures the sliding-window noise threshold estimator.
type ThresholdParams struct {
	// Window is the number of samples averaged per step.
	Window int
	// Step is how far the window start advances between steps.
	Step int
	// NoiseFloor is the mean at or below which a window counts as noise.
	NoiseFloor float64
	// StreakLimit is exceeded once enough consecutive windows rise above
	// the noise floor to stop the scan.
	StreakLimit int
}

// DefaultThresholdParams returns the tuned estimator settings.
func DefaultThresholdParams() ThresholdParams {
	return ThresholdParams{
		Window:      DefaultThresholdWindow,
		Step:        DefaultThresholdStep,
		NoiseFloor:  DefaultThresholdNoiseFloor,
		StreakLimit: DefaultThresholdStreakLimit,
	}
}

// Validate checks the parameters are usable.
func (p ThresholdParams) Validate() error {
	if p.Window < 1 {
		return fmt.Errorf("threshold window must be positive, got %d", p.Window)
	}
	if p.Step < 1 {
		return fmt.Errorf("threshold step must be positive, got %d", p.Step)
	}
	if p.NoiseFloor < 0 {
		return fmt.Errorf("threshold noise floor must be non-negative, got %g", p.NoiseFloor)
	}
	if p.StreakLimit < 0 {
		return fmt.Errorf("threshold streak limit must be non-negative, got %d", p.StreakLimit)
	}
	return nil
}

// thresholdState is carried from one window to the next.
type thresholdState struct {
	threshold float64
	streak    int
	rising    bool
}

// next folds one window mean into the state. While a streak of windows
// above the floor continues, the threshold stays at the value it held when
// the streak began.
func (s thresholdState) next(mean, floor float64) thresholdState {
	prev := s.threshold
	s.threshold = mean
	switch {
	case mean > floor:
		s.rising = true
		s.streak++
		if s.streak > 1 {
			s.threshold = prev
		}
	case s.rising:
		s.rising = false
		s.streak = 0
	}
	return s
}

func (s thresholdState) settled(p ThresholdParams) bool {
	return s.threshold > p.NoiseFloor && s.streak > p.StreakLimit
}

// EstimateThreshold runs the estimator with DefaultThresholdParams.
func EstimateThreshold(series []float64) (float64, error) {
	return DefaultThresholdParams().Estimate(series)
}

// Estimate returns the amplitude level at which series rises out of the
// background noise and stays there.
func (p ThresholdParams) Estimate(series []float64) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	n := len(series)
	if n == 0 {
		return 0, stageErr(StageThreshold, n, ErrInsufficientData, "empty series")
	}

	var st thresholdState
	start, end := 0, p.Window
	for {
		st = st.next(stat.Mean(series[start:min(end, n)], nil), p.NoiseFloor)
		start += p.Step
		end += p.Step
		if end > n || st.settled(p) {
			break
		}
	}
	return st.threshold, nil
}
