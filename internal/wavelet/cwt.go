package wavelet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/bits"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Method selects how rows are convolved.
type Method string

const (
	MethodConv Method = "conv"
	MethodFFT  Method = "fft"
)

// ErrScaleTooSmall is returned when a scale resamples the wavelet to fewer
// than two points.
var ErrScaleTooSmall = errors.New("scale too small")

// ParseMethod accepts "conv" or "fft"; an empty string selects conv.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", MethodConv:
		return MethodConv, nil
	case MethodFFT:
		return MethodFFT, nil
	}
	return "", fmt.Errorf("unknown wavelet method %q (use conv or fft)", s)
}

// Transform computes Morlet CWT rows. It is safe for concurrent use.
type Transform struct {
	wavelet *Morlet
	method  Method
}

// New returns a Transform using method.
func New(method Method) (*Transform, error) {
	if _, err := ParseMethod(string(method)); err != nil {
		return nil, err
	}
	if method == "" {
		method = MethodConv
	}
	return &Transform{wavelet: NewMorlet(), method: method}, nil
}

// Method returns the convolution method in use.
func (t *Transform) Method() Method { return t.method }

// Row returns the wavelet coefficients of data at scale. The result has
// len(data) entries.
func (t *Transform) Row(data []float64, scale float64) ([]float64, error) {
	if len(data) == 0 {
		return nil, errors.New("empty data")
	}
	if !(scale > 0) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("scale %g: must be positive and finite", scale)
	}
	kernel := t.wavelet.kernel(scale)
	if len(kernel) < 2 {
		return nil, fmt.Errorf("scale %g: %w", scale, ErrScaleTooSmall)
	}

	var full []float64
	if t.method == MethodFFT {
		full = convolveFFT(data, kernel)
	} else {
		full = convolve(data, kernel)
	}

	// Differentiate, scale and trim back to len(data).
	coef := make([]float64, len(full)-1)
	gain := -math.Sqrt(scale)
	for i := range coef {
		coef[i] = gain * (full[i+1] - full[i])
	}
	d := float64(len(coef)-len(data)) / 2
	lo := int(math.Floor(d))
	hi := len(coef) - int(math.Ceil(d))
	return coef[lo:hi:hi], nil
}

// Decompose computes one row per scale. It stops early if ctx is done.
func (t *Transform) Decompose(ctx context.Context, data []float64, scales []float64) ([][]float64, error) {
	rows := make([][]float64, len(scales))
	for i, s := range scales {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := t.Row(data, s)
		if err != nil {
			return nil, fmt.Errorf("band %d: %w", i, err)
		}
		rows[i] = row
	}
	return rows, nil
}

// Scales converts band frequencies in Hz to wavelet scales for a signal
// sampled at sampleRate Hz: scale = centerFrequency * sampleRate / f.
func Scales(centerFrequency, sampleRate float64, freqs []float64) ([]float64, error) {
	if !(centerFrequency > 0) || !(sampleRate > 0) {
		return nil, fmt.Errorf("centre frequency %g and sample rate %g must be positive",
			centerFrequency, sampleRate)
	}
	out := make([]float64, len(freqs))
	for i, f := range freqs {
		if !(f > 0) {
			return nil, fmt.Errorf("frequency %d: %g Hz must be positive", i, f)
		}
		out[i] = centerFrequency * sampleRate / f
	}
	return out, nil
}

// Product multiplies rows[bands[0]] * rows[bands[1]] * ... element-wise
// into a new slice.
func Product(rows [][]float64, bands []int) ([]float64, error) {
	if len(bands) == 0 {
		return nil, errors.New("no bands selected")
	}
	var out []float64
	for _, b := range bands {
		if b < 0 || b >= len(rows) {
			return nil, fmt.Errorf("band %d out of range [0, %d)", b, len(rows))
		}
		if out == nil {
			out = append([]float64(nil), rows[b]...)
			continue
		}
		if len(rows[b]) != len(out) {
			return nil, fmt.Errorf("band %d has %d samples, want %d", b, len(rows[b]), len(out))
		}
		floats.Mul(out, rows[b])
	}
	return out, nil
}

// convolve is the full discrete convolution, len(a)+len(b)-1 samples.
func convolve(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b)-1)
	for i, av := range a {
		if av == 0 {
			continue
		}
		floats.AddScaled(out[i:i+len(b)], av, b)
	}
	return out
}

// convolveFFT computes the same full convolution through a zero-padded
// real FFT.
func convolveFFT(a, b []float64) []float64 {
	n := len(a) + len(b) - 1
	size := 1 << bits.Len(uint(n-1))
	if size < 2 {
		size = 2
	}

	fft := fourier.NewFFT(size)
	pa := make([]float64, size)
	pb := make([]float64, size)
	copy(pa, a)
	copy(pb, b)

	ca := fft.Coefficients(nil, pa)
	cb := fft.Coefficients(nil, pb)
	for i := range ca {
		ca[i] *= cb[i]
	}
	seq := fft.Sequence(nil, ca)

	// Sequence is unnormalized.
	floats.Scale(1/float64(size), seq)
	return seq[:n]
}
