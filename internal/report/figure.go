// Package report renders analysis results as PNG figures and interactive
// HTML charts.
package report

import (
	"fmt"
	"image/color"

	"github.com/banshee-data/wavemode/internal/analysis"
	"github.com/banshee-data/wavemode/internal/units"
)

// Marker styles for the two arrivals.
var (
	FlexureColor   = color.RGBA{R: 0x37, G: 0x7e, B: 0xb8, A: 0xff} // #377eb8
	ExtensionColor = color.RGBA{R: 0xe4, G: 0x1a, B: 0x1c, A: 0xff} // #e41a1c
)

// Dash is the stroke pattern of a marker.
type Dash int

const (
	Solid Dash = iota
	Dashed
	Dotted
)

// Marker is a vertical line at an arrival time.
type Marker struct {
	Label string
	Time  float64
	Color color.RGBA
	Dash  Dash
}

// Figure is one signal plotted against time with arrival markers.
type Figure struct {
	Name    string // file-name suffix
	Title   string
	XLabel  string
	YLabel  string
	Series  string
	Time    []float64
	Values  []float64
	Markers []Marker
}

// Figures returns the waveform, extensional and flexural figures of r with
// times in unit.
func Figures(r *analysis.Result, unit string) []Figure {
	axis := units.TimeAxis(len(r.Waveform), r.SampleRate, unit)
	label := units.Label(unit)
	xLabel := fmt.Sprintf("Time [%s]", label)

	flexT := units.IndexToTime(r.FlexureIndex, r.SampleRate, unit)
	extT := units.IndexToTime(r.ExtensionIndex, r.SampleRate, unit)
	flex := Marker{
		Label: fmt.Sprintf("Flexural mode arrival = %.1f %s", flexT, label),
		Time:  flexT,
		Color: FlexureColor,
		Dash:  Dashed,
	}
	ext := Marker{
		Label: fmt.Sprintf("Extensional mode arrival = %.1f %s", extT, label),
		Time:  extT,
		Color: ExtensionColor,
		Dash:  Dotted,
	}

	return []Figure{
		{
			Name:    "waveform",
			Title:   "Arrival of extensional and flexural wave modes",
			XLabel:  xLabel,
			YLabel:  "Signal amplitude [V]",
			Series:  "AE signal",
			Time:    axis,
			Values:  r.Waveform,
			Markers: []Marker{flex, ext},
		},
		{
			Name:    "extension",
			Title:   fmt.Sprintf("Extensional decomposition signal (%g kHz component)", r.ExtensionFrequencyHz/1e3),
			XLabel:  xLabel,
			YLabel:  "Wavelet coefficient",
			Series:  "Extensional decomposition",
			Time:    axis,
			Values:  r.ExtensionRow,
			Markers: []Marker{ext},
		},
		{
			Name:    "flexure",
			Title:   "Flexural decomposition signal (several wavelet components)",
			XLabel:  xLabel,
			YLabel:  "Wavelet coefficient",
			Series:  "Flexural decomposition",
			Time:    axis,
			Values:  r.FlexureRow,
			Markers: []Marker{flex},
		},
	}
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
