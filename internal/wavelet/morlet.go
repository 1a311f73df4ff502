package wavelet

import "math"

// DefaultCenterFrequency is the normalized centre frequency of the Morlet
// wavelet exp(-t²/2)·cos(5t), used to convert band frequencies to scales.
// It is 5/(2π) evaluated in float64 arithmetic, which differs in the last
// bits from the exactly rounded constant.
const DefaultCenterFrequency = 0.7957747154594768

const (
	morletBound  = 8    // wavelet support is [-morletBound, morletBound]
	morletPoints = 1024 // grid resolution, 2^10
)

// Morlet is the real Morlet wavelet integrated on a fixed grid.
type Morlet struct {
	grid     []float64
	integral []float64
	step     float64
}

// NewMorlet samples and integrates the wavelet.
func NewMorlet() *Morlet {
	grid := linspace(-morletBound, morletBound, morletPoints)
	step := grid[1] - grid[0]

	integral := make([]float64, len(grid))
	var sum float64
	for i, t := range grid {
		sum += Psi(t)
		integral[i] = sum * step
	}
	return &Morlet{grid: grid, integral: integral, step: step}
}

// Psi evaluates the Morlet wavelet at t.
func Psi(t float64) float64 {
	return math.Exp(-t*t/2) * math.Cos(5*t)
}

// Support returns the width of the wavelet grid.
func (m *Morlet) Support() float64 {
	return m.grid[len(m.grid)-1] - m.grid[0]
}

// kernel resamples the integrated wavelet for scale and reverses it, ready
// for convolution.
func (m *Morlet) kernel(scale float64) []float64 {
	n := int(math.Ceil(scale*m.Support() + 1))
	out := make([]float64, 0, n)
	for k := 0; k < n; k++ {
		j := int(float64(k) / (scale * m.step))
		if j >= len(m.integral) {
			break
		}
		out = append(out, m.integral[j])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// linspace mirrors the usual evenly spaced grid: start + i*step, with the
// endpoint pinned to stop.
func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}
