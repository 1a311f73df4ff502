// Package analysis runs the full arrival pipeline on waveforms: wavelet
// decomposition, selection of the extensional and flexural rows, and
// arrival detection.
package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/wavemode/internal/arrival"
	"github.com/banshee-data/wavemode/internal/config"
	"github.com/banshee-data/wavemode/internal/monitoring"
	"github.com/banshee-data/wavemode/internal/units"
	"github.com/banshee-data/wavemode/internal/waveform"
	"github.com/banshee-data/wavemode/internal/wavelet"
)

// Result is the outcome of analysing one waveform.
type Result struct {
	Source     string  `json:"source"`
	SampleRate float64 `json:"sample_rate_hz"`
	Samples    int     `json:"samples"`

	ExtensionIndex  int     `json:"extension_index"`
	FlexureIndex    int     `json:"flexure_index"`
	ExtensionTimeUS float64 `json:"extension_time_us"`
	FlexureTimeUS   float64 `json:"flexure_time_us"`

	ExtensionFrequencyHz float64   `json:"extension_frequency_hz"`
	FlexureFrequenciesHz []float64 `json:"flexure_frequencies_hz"`

	// Signals kept for plotting; not serialized.
	Waveform     []float64 `json:"-"`
	ExtensionRow []float64 `json:"-"`
	FlexureRow   []float64 `json:"-"`
}

// Arrivals returns the two arrival indices.
func (r *Result) Arrivals() arrival.Arrivals {
	return arrival.Arrivals{Extension: r.ExtensionIndex, Flexure: r.FlexureIndex}
}

// Summary formats the arrivals the way the command-line tool prints them.
func (r *Result) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Flexural Arrival Index = %d\n", r.FlexureIndex)
	fmt.Fprintf(&sb, "Flexural Arrival Time = %.1f µs\n\n", r.FlexureTimeUS)
	fmt.Fprintf(&sb, "Extensional Arrival Index = %d\n", r.ExtensionIndex)
	fmt.Fprintf(&sb, "Extensional Arrival Time = %.1f µs\n", r.ExtensionTimeUS)
	return sb.String()
}

// Analyzer holds the configured transform and detector. It is safe for
// concurrent use.
type Analyzer struct {
	tuning    *config.TuningConfig
	detector  *arrival.Detector
	transform *wavelet.Transform
}

// NewAnalyzer validates cfg and prepares the pipeline.
func NewAnalyzer(cfg *config.TuningConfig) (*Analyzer, error) {
	if cfg == nil {
		cfg = config.DefaultTuningConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning config: %w", err)
	}
	det, err := arrival.NewDetector(cfg.ArrivalConfig())
	if err != nil {
		return nil, err
	}
	tr, err := wavelet.New(cfg.GetWaveletMethod())
	if err != nil {
		return nil, err
	}
	return &Analyzer{tuning: cfg, detector: det, transform: tr}, nil
}

// Tuning returns the configuration in use.
func (a *Analyzer) Tuning() *config.TuningConfig { return a.tuning }

// Rows decomposes samples and returns the extensional row and the flexural
// product row. Only the bands those rows need are computed.
func (a *Analyzer) Rows(ctx context.Context, samples []float64, sampleRate float64) (ext, flex []float64, err error) {
	freqs := a.tuning.GetFrequenciesHz()
	scales, err := wavelet.Scales(a.tuning.GetWaveletCenterFrequency(), sampleRate, freqs)
	if err != nil {
		return nil, nil, err
	}

	extBand := a.tuning.GetExtensionBand()
	flexBands := a.tuning.GetFlexureBands()
	rows := make([][]float64, len(scales))
	for _, b := range append([]int{extBand}, flexBands...) {
		if rows[b] != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		row, err := a.transform.Row(samples, scales[b])
		if err != nil {
			return nil, nil, fmt.Errorf("band %d (%g Hz): %w", b, freqs[b], err)
		}
		monitoring.Debugf("wavelet band %d: %g Hz, scale %.3f, %d samples", b, freqs[b], scales[b], len(row))
		rows[b] = row
	}

	flex, err = wavelet.Product(rows, flexBands)
	if err != nil {
		return nil, nil, err
	}
	return rows[extBand], flex, nil
}

// Analyze runs the pipeline on one waveform.
func (a *Analyzer) Analyze(ctx context.Context, wf *waveform.Waveform) (*Result, error) {
	start := time.Now()
	ext, flex, err := a.Rows(ctx, wf.Samples, wf.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("%s: decompose: %w", wf.Source, err)
	}
	arr, err := a.detector.Detect(ext, flex)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", wf.Source, err)
	}

	freqs := a.tuning.GetFrequenciesHz()
	flexFreqs := make([]float64, 0, len(a.tuning.GetFlexureBands()))
	for _, b := range a.tuning.GetFlexureBands() {
		flexFreqs = append(flexFreqs, freqs[b])
	}

	r := &Result{
		Source:               wf.Source,
		SampleRate:           wf.SampleRate,
		Samples:              wf.Len(),
		ExtensionIndex:       arr.Extension,
		FlexureIndex:         arr.Flexure,
		ExtensionTimeUS:      units.IndexToTime(arr.Extension, wf.SampleRate, units.Microseconds),
		FlexureTimeUS:        units.IndexToTime(arr.Flexure, wf.SampleRate, units.Microseconds),
		ExtensionFrequencyHz: freqs[a.tuning.GetExtensionBand()],
		FlexureFrequenciesHz: flexFreqs,
		Waveform:             wf.Samples,
		ExtensionRow:         ext,
		FlexureRow:           flex,
	}
	monitoring.Debugf("%s: extension %d, flexure %d (%.1fms)", wf.Source, arr.Extension, arr.Flexure,
		float64(time.Since(start).Microseconds())/1000)
	return r, nil
}

// AnalyzeAll analyses waveforms concurrently with at most workers in
// flight (workers < 1 means one). Results keep the input order. The first
// failure cancels the remaining work and is returned.
func (a *Analyzer) AnalyzeAll(ctx context.Context, wfs []*waveform.Waveform, workers int) ([]*Result, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]*Result, len(wfs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, wf := range wfs {
		g.Go(func() error {
			r, err := a.Analyze(gctx, wf)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	monitoring.Logf("analysed %d waveforms with %d workers", len(wfs), workers)
	return results, nil
}
