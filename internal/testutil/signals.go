package testutil

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
)

// DelayedSine returns n samples that are exactly zero before onset and a
// unit-amplitude sine with the given period (in samples) from onset on.
// The sine starts at zero phase, so its first peak is at onset+period/4.
func DelayedSine(n, onset, period int) []float64 {
	out := make([]float64, n)
	for k := onset; k < n; k++ {
		out[k] = math.Sin(2 * math.Pi * float64(k-onset) / float64(period))
	}
	return out
}

// Burst describes a synthetic acoustic-emission hit made of two
// Gaussian-windowed tone bursts over white noise.
type Burst struct {
	Samples    int
	SampleRate float64
	Noise      float64
	Seed       int64

	// Extensional component: early, fast, weak.
	ExtOnset     int
	ExtFrequency float64
	ExtAmplitude float64

	// Flexural component: late, slow, strong.
	FlexOnset     int
	FlexFrequency float64
	FlexAmplitude float64
}

// DefaultBurst returns a 5 MHz, 2048-sample hit with the extensional
// component at sample 400 and the flexural component at sample 900.
func DefaultBurst() Burst {
	return Burst{
		Samples:       2048,
		SampleRate:    5e6,
		Noise:         1e-3,
		Seed:          42,
		ExtOnset:      400,
		ExtFrequency:  310e3,
		ExtAmplitude:  0.2,
		FlexOnset:     900,
		FlexFrequency: 120e3,
		FlexAmplitude: 1.0,
	}
}

// Generate renders the hit. The same Burst always produces the same samples.
func (b Burst) Generate() []float64 {
	rng := rand.New(rand.NewSource(b.Seed))
	out := make([]float64, b.Samples)
	for k := range out {
		out[k] = b.Noise * rng.NormFloat64()
	}
	addTone(out, b.ExtOnset, b.ExtFrequency, b.ExtAmplitude, b.SampleRate)
	addTone(out, b.FlexOnset, b.FlexFrequency, b.FlexAmplitude, b.SampleRate)
	return out
}

// addTone adds a tone whose Gaussian envelope peaks six cycles after onset.
func addTone(dst []float64, onset int, freq, amp, fs float64) {
	if amp == 0 || freq <= 0 {
		return
	}
	cycle := fs / freq
	centre := float64(onset) + 6*cycle
	sigma := 2 * cycle
	for k := onset; k < len(dst); k++ {
		t := float64(k)
		env := math.Exp(-0.5 * math.Pow((t-centre)/sigma, 2))
		dst[k] += amp * env * math.Sin(2*math.Pi*(t-float64(onset))/cycle)
	}
}

// FormatColumn renders samples one per line, the layout the waveform
// loader reads.
func FormatColumn(samples []float64) string {
	var sb strings.Builder
	for _, v := range samples {
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		sb.WriteByte('\n')
	}
	return sb.String()
}
