package arrival

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateThreshold_StepSeries(t *testing.T) {
	t.Parallel()

	series := make([]float64, 200)
	for i := 60; i < len(series); i++ {
		series[i] = 0.5
	}

	// The window starting at 40 covers five 0.5 samples: mean 0.1. The
	// following windows sit on the plateau and hold the threshold there.
	got, err := EstimateThreshold(series)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, got, 1e-12)
}

func TestEstimateThreshold_AllNoise(t *testing.T) {
	t.Parallel()

	got, err := EstimateThreshold(make([]float64, 300))
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestEstimateThreshold_ShortSeries(t *testing.T) {
	t.Parallel()

	// Shorter than one window: the single partial window is averaged.
	got, err := EstimateThreshold([]float64{1, 2, 3})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got, 1e-12)
}

func TestEstimateThreshold_Empty(t *testing.T) {
	t.Parallel()

	_, err := EstimateThreshold(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientData))

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageThreshold, se.Stage)
}

func TestThresholdState_Fold(t *testing.T) {
	t.Parallel()

	means := []float64{0, 0.5, 0, 0.3, 0.4, 0.6}
	wantThreshold := []float64{0, 0.5, 0, 0.3, 0.3, 0.3}
	wantStreak := []int{0, 1, 0, 1, 2, 3}

	p := DefaultThresholdParams()
	var st thresholdState
	for i, m := range means {
		st = st.next(m, p.NoiseFloor)
		assert.Equal(t, wantThreshold[i], st.threshold, "step %d threshold", i)
		assert.Equal(t, wantStreak[i], st.streak, "step %d streak", i)
		assert.Equal(t, i == len(means)-1, st.settled(p), "step %d settled", i)
	}
}

func TestThresholdParams_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*ThresholdParams)
	}{
		{"zero window", func(p *ThresholdParams) { p.Window = 0 }},
		{"zero step", func(p *ThresholdParams) { p.Step = 0 }},
		{"negative floor", func(p *ThresholdParams) { p.NoiseFloor = -1 }},
		{"negative streak", func(p *ThresholdParams) { p.StreakLimit = -1 }},
	}
	require.NoError(t, DefaultThresholdParams().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := DefaultThresholdParams()
			tt.mutate(&p)
			assert.Error(t, p.Validate())
			_, err := p.Estimate([]float64{1, 2, 3})
			assert.Error(t, err)
		})
	}
}
