package arrival

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/wavemode/internal/testutil"
)

// craftNormalized builds a 40-extremum Normalized with locations
// 10, 20, ..., 400. fill sets individual weights; the dominant entry is the
// first one equal to 1.
func craftNormalized(t *testing.T, fill func(param []float64)) Normalized {
	t.Helper()
	const m = 40
	param := make([]float64, m)
	locs := make([]float64, m)
	for i := range locs {
		locs[i] = float64(10 * (i + 1))
	}
	fill(param)
	dominant := -1
	for i, v := range param {
		if v == 1 {
			dominant = i
			break
		}
	}
	require.GreaterOrEqual(t, dominant, 0, "fixture has no dominant entry")
	return Normalized{Param: param, Locations: locs, Reference: 1, Dominant: dominant}
}

func setRange(param []float64, from, to int, v float64) {
	for i := from; i <= to; i++ {
		param[i] = v
	}
}

func TestExtensionArrival_Branches(t *testing.T) {
	t.Parallel()

	const n = 1000
	tests := []struct {
		name string
		fill func([]float64)
		want int
	}{
		{
			// Segment [21:23] crosses refMax; the search window runs from
			// the quiet segment at 18 to the peak at 21.
			name: "strong",
			fill: func(p []float64) {
				p[0] = 1.0 / 256
				setRange(p, 1, 3, 1.0/128)
				setRange(p, 4, 19, 1.0/256)
				p[20] = 0.05
				p[21] = 1
				setRange(p, 22, 39, 0.5)
			},
			want: 210,
		},
		{
			name: "strong without quiet segment",
			fill: func(p []float64) {
				setRange(p, 0, 19, 1.0/128)
				p[20] = 0.05
				p[21] = 1
				setRange(p, 22, 39, 0.5)
			},
			want: 210,
		},
		{
			// The lone spike at 20 falls in the gap between two segments,
			// so no segment mean crosses refMax.
			name: "weak",
			fill: func(p []float64) {
				p[0] = 1.0 / 256
				setRange(p, 1, 3, 1.0/128)
				setRange(p, 4, 19, 1.0/256)
				p[20] = 1
				setRange(p, 21, 23, 1.0/256)
				setRange(p, 24, 39, 1.0/32)
			},
			want: 250,
		},
		{
			name: "weak first remaining entry",
			fill: func(p []float64) {
				p[0] = 1.0 / 256
				setRange(p, 1, 3, 1.0/128)
				setRange(p, 4, 17, 1.0/256)
				p[18] = 0
				p[19] = 3.0 / 256
				p[20] = 1
				setRange(p, 21, 39, 1.0/32)
			},
			want: 0,
		},
		{
			// Only the first segment is quiet; the search still starts
			// after the second.
			name: "weak defaults to second segment",
			fill: func(p []float64) {
				setRange(p, 1, 4, 1.0/128)
				setRange(p, 5, 39, 1.0/64)
				p[20] = 1
			},
			want: 60,
		},
	}

	p := DefaultExtensionParams()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := p.arrival(craftNormalized(t, tt.fill), n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtensionReference(t *testing.T) {
	t.Parallel()

	norm := craftNormalized(t, func(p []float64) {
		p[0] = 1.0 / 256
		setRange(p, 1, 3, 1.0/128)
		p[21] = 1
	})
	ref, err := DefaultExtensionParams().reference(norm, 1000)
	require.NoError(t, err)
	assert.Equal(t, 21, ref.dominant)
	assert.Equal(t, 55.0, ref.noiseLim)
	assert.Equal(t, 4, ref.noiseLoc)
	assert.InDelta(t, 1.0/128, ref.refNoise, 1e-15)
	assert.InDelta(t, 10.0/128, ref.refMax, 1e-15)
}

func TestExtensionReference_NoiseMin(t *testing.T) {
	t.Parallel()

	norm := craftNormalized(t, func(p []float64) { p[21] = 1 })
	ref, err := DefaultExtensionParams().reference(norm, 1000)
	require.NoError(t, err)
	assert.Equal(t, DefaultNoiseMin, ref.refNoise)
	assert.InDelta(t, DefaultNoiseMultiplier*DefaultNoiseMin, ref.refMax, 1e-18)
}

func TestStrongArrival_ZeroLocationFallback(t *testing.T) {
	t.Parallel()

	param := []float64{1.0 / 256, 1.0 / 256, 1}
	locs := []float64{30, 40, 0}
	scan := segmentScan{segments: []segment{{start: 0, mean: 1.0 / 256}}, crossed: true}
	ref := extensionReference{refNoise: 1.0 / 128, refMax: 0.078125}

	assert.Equal(t, 40, strongArrival(param, locs, scan, ref))
}

func TestExtensionArrival_NoiseRegionTooSmall(t *testing.T) {
	t.Parallel()

	norm := Normalized{
		Param:     []float64{1, 0.5, 0.5, 0.5},
		Locations: []float64{1, 2, 3, 4},
	}
	_, err := DefaultExtensionParams().arrival(norm, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientData))

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageNoiseRegion, se.Stage)
	assert.Equal(t, 10, se.Length)
}

func TestDetectExtensionArrival_DelayedSine(t *testing.T) {
	t.Parallel()

	// First peak of the sine is a quarter period after onset.
	got, err := DetectExtensionArrival(testutil.DelayedSine(1100, 500, 20))
	require.NoError(t, err)
	assert.Equal(t, 505, got)
}

func TestDetectExtensionArrival_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		signal    []float64
		wantErr   error
		wantStage string
	}{
		{"too short", []float64{1, 2}, ErrInsufficientData, StageExtrema},
		{"monotonic", []float64{1, 2, 3, 4, 5}, ErrInsufficientData, StageNormalize},
		{"constant", []float64{3, 3, 3, 3}, ErrInsufficientData, StageNormalize},
		{"zero weights", []float64{0, 0, 1, 1}, ErrDegenerateSignal, StageNormalize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := DetectExtensionArrival(tt.signal)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			var se *StageError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.wantStage, se.Stage)
			assert.Equal(t, len(tt.signal), se.Length)
		})
	}
}

func TestExtensionParams_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultExtensionParams().Validate())
	assert.Error(t, ExtensionParams{NoiseMultiplier: 0.5}.Validate())
	assert.Error(t, ExtensionParams{NoiseMultiplier: 10, NoiseMin: -1}.Validate())

	_, err := ExtensionParams{}.Detect(testutil.DelayedSine(1100, 500, 20))
	assert.Error(t, err)
}
