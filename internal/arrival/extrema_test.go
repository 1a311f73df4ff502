package arrival

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindExtrema_AlternatingFixture(t *testing.T) {
	t.Parallel()

	got, err := FindExtrema([]float64{0, 1, 0, -1, 0, 1, 0, -1, 0})
	require.NoError(t, err)

	want := ExtremumSet{
		Values:      []float64{1, -1, 1, -1},
		Locations:   []float64{1, 3, 5, 7},
		Widths:      []float64{2, 4, 4, 4},
		Prominences: []float64{1, 2, 2, 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FindExtrema mismatch (-want +got):\n%s", diff)
	}
}

func TestFindExtrema_StartPlaceholderWidth(t *testing.T) {
	t.Parallel()

	// The first extremum sits at index 3; its width is measured from the
	// placeholder start location 1, not from index 0.
	got, err := FindExtrema([]float64{0, 1, 2, 3, 2, 1})
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, []float64{3}, got.Locations)
	assert.Equal(t, []float64{6 - 1}, got.Widths)
	assert.Equal(t, []float64{2}, got.Prominences)
}

func TestFindExtrema_TooShort(t *testing.T) {
	t.Parallel()

	for _, signal := range [][]float64{nil, {1}, {1, 2}} {
		_, err := FindExtrema(signal)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInsufficientData))

		var se *StageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, StageExtrema, se.Stage)
		assert.Equal(t, len(signal), se.Length)
	}
}

func TestFindExtrema_EmptyResults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		signal []float64
	}{
		{"increasing", []float64{1, 2, 3, 4, 5}},
		{"decreasing", []float64{5, 4, 3, 2, 1}},
		{"constant", []float64{2, 2, 2, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindExtrema(tt.signal)
			require.NoError(t, err)
			assert.True(t, got.Empty())
			assert.Empty(t, got.Values)
			assert.Empty(t, got.Widths)
			assert.Empty(t, got.Prominences)
		})
	}
}

func TestFindExtrema_PlateauCountsBothEdges(t *testing.T) {
	t.Parallel()

	got, err := FindExtrema([]float64{0, 1, 1, 0})
	require.NoError(t, err)

	want := ExtremumSet{
		Values:      []float64{1, 1},
		Locations:   []float64{1, 2},
		Widths:      []float64{1, 3},
		Prominences: []float64{0, 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plateau mismatch (-want +got):\n%s", diff)
	}
}

func TestFindExtrema_RandomSignalProperties(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		n := 3 + rng.Intn(400)
		signal := make([]float64, n)
		for i := range signal {
			signal[i] = rng.NormFloat64()
		}

		set, err := FindExtrema(signal)
		require.NoError(t, err)

		m := set.Len()
		require.Len(t, set.Values, m)
		require.Len(t, set.Widths, m)
		require.Len(t, set.Prominences, m)

		for i, loc := range set.Locations {
			assert.Greater(t, loc, 0.0)
			assert.Less(t, loc, float64(n-1))
			if i > 0 {
				assert.Greater(t, loc, set.Locations[i-1], "locations must increase")
			}
			assert.Equal(t, signal[int(loc)], set.Values[i])
		}

		// Prominence is the smaller neighbour difference, never the larger.
		for i := 1; i < m-1; i++ {
			left := math.Abs(set.Values[i] - set.Values[i-1])
			right := math.Abs(set.Values[i+1] - set.Values[i])
			assert.Equal(t, min(left, right), set.Prominences[i])
			if left != right {
				assert.NotEqual(t, max(left, right), set.Prominences[i])
			}
		}
	}
}

