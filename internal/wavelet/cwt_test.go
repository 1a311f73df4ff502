package wavelet

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/wavemode/internal/testutil"
)

var defaultFrequencies = []float64{
	40e3, 60e3, 80e3, 100e3, 120e3, 150e3, 180e3,
	220e3, 270e3, 310e3, 360e3, 420e3, 480e3,
}

func tone(n int, freq, fs float64) []float64 {
	out := make([]float64, n)
	for k := range out {
		out[k] = math.Sin(2 * math.Pi * freq * float64(k) / fs)
	}
	return out
}

func TestMorlet_Grid(t *testing.T) {
	t.Parallel()

	m := NewMorlet()
	require.Len(t, m.grid, morletPoints)
	assert.Equal(t, -8.0, m.grid[0])
	assert.Equal(t, 8.0, m.grid[len(m.grid)-1])
	assert.Equal(t, 16.0, m.Support())
	assert.InDelta(t, 16.0/1023, m.step, 1e-15)

	// The wavelet has near-zero mean, so its integral ends close to zero.
	assert.InDelta(t, 0, m.integral[len(m.integral)-1], 1e-4)
	assert.Equal(t, 1.0, Psi(0))
}

func TestMorlet_Kernel(t *testing.T) {
	t.Parallel()

	m := NewMorlet()
	k := m.kernel(1)
	require.Len(t, k, 17)
	// Reversed: the last entry is the start of the integral.
	assert.Equal(t, m.integral[0], k[len(k)-1])

	// Large scales are capped by the grid length, never indexing past it.
	big := m.kernel(200)
	assert.LessOrEqual(t, len(big), int(math.Ceil(200*16+1)))
	assert.Equal(t, m.integral[0], big[len(big)-1])
}

func TestRow_LengthMatchesInput(t *testing.T) {
	t.Parallel()

	tr, err := New(MethodConv)
	require.NoError(t, err)
	data := testutil.DefaultBurst().Generate()[:600]

	for _, scale := range []float64{0.2, 1, 3.7, 12.8, 99.5} {
		row, err := tr.Row(data, scale)
		require.NoError(t, err, "scale %g", scale)
		assert.Len(t, row, len(data), "scale %g", scale)
	}
}

func TestRow_FFTMatchesConv(t *testing.T) {
	t.Parallel()

	conv, err := New(MethodConv)
	require.NoError(t, err)
	viaFFT, err := New(MethodFFT)
	require.NoError(t, err)
	assert.Equal(t, MethodFFT, viaFFT.Method())

	data := testutil.DefaultBurst().Generate()[:700]
	for _, scale := range []float64{1.5, 12.8, 66.3} {
		want, err := conv.Row(data, scale)
		require.NoError(t, err)
		got, err := viaFFT.Row(data, scale)
		require.NoError(t, err)
		require.Len(t, got, len(want))
		assert.True(t, floats.EqualApprox(want, got, 1e-9), "scale %g", scale)
	}
}

func TestRow_Errors(t *testing.T) {
	t.Parallel()

	tr, err := New(MethodConv)
	require.NoError(t, err)

	_, err = tr.Row([]float64{1, 2, 3}, 0.01)
	assert.True(t, errors.Is(err, ErrScaleTooSmall), "got %v", err)

	_, err = tr.Row([]float64{1, 2, 3}, 0)
	assert.Error(t, err)
	_, err = tr.Row([]float64{1, 2, 3}, math.NaN())
	assert.Error(t, err)
	_, err = tr.Row(nil, 1)
	assert.Error(t, err)
}

func TestDecompose_ToneSelectsBand(t *testing.T) {
	t.Parallel()

	const fs = 5e6
	scales, err := Scales(DefaultCenterFrequency, fs, defaultFrequencies)
	require.NoError(t, err)

	tr, err := New(MethodFFT)
	require.NoError(t, err)
	rows, err := tr.Decompose(context.Background(), tone(2000, 310e3, fs), scales)
	require.NoError(t, err)
	require.Len(t, rows, len(defaultFrequencies))

	energy := func(row []float64) float64 { return stat.Mean(floatsSquare(row), nil) }
	assert.Greater(t, energy(rows[9]), 100*energy(rows[0]))
}

func floatsSquare(s []float64) []float64 {
	out := append([]float64(nil), s...)
	floats.Mul(out, s)
	return out
}

func TestDecompose_Cancelled(t *testing.T) {
	t.Parallel()

	tr, err := New(MethodConv)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = tr.Decompose(ctx, []float64{1, 2, 3, 4}, []float64{1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScales(t *testing.T) {
	t.Parallel()

	got, err := Scales(DefaultCenterFrequency, 5e6, []float64{310e3, 40e3})
	require.NoError(t, err)
	assert.InDelta(t, 12.8351, got[0], 1e-4)
	assert.InDelta(t, 99.4718, got[1], 1e-4)

	_, err = Scales(DefaultCenterFrequency, 5e6, []float64{0})
	assert.Error(t, err)
	_, err = Scales(DefaultCenterFrequency, 0, []float64{1})
	assert.Error(t, err)
}

func TestProduct(t *testing.T) {
	t.Parallel()

	rows := [][]float64{{1, 2, 3}, {2, 2, 2}, {0.5, -1, 1}}
	got, err := Product(rows, []int{0, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -4, 6}, got)
	assert.Equal(t, []float64{1, 2, 3}, rows[0], "input must not be modified")

	_, err = Product(rows, []int{3})
	assert.Error(t, err)
	_, err = Product(rows, nil)
	assert.Error(t, err)
	_, err = Product([][]float64{{1}, {1, 2}}, []int{0, 1})
	assert.Error(t, err)
}

func TestParseMethod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{"", MethodConv, false},
		{"conv", MethodConv, false},
		{"fft", MethodFFT, false},
		{"wavelet", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMethod(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
	_, err := New("bogus")
	assert.Error(t, err)
}

func TestDefaultCenterFrequency_Float64(t *testing.T) {
	five, two := 5.0, 2.0
	assert.Equal(t, five/(two*math.Pi), DefaultCenterFrequency)
}
