package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/wavemode/internal/analysis"
)

// MaxChartPoints bounds the points per HTML series; longer signals are
// decimated by striding.
const MaxChartPoints = 4000

// HTMLOptions configures RenderHTML.
type HTMLOptions struct {
	// Unit is the time unit of the x axis.
	Unit string
	// AssetsHost overrides where the echarts scripts are loaded from.
	AssetsHost string
}

// RenderHTML writes a single page with the three charts of every result.
func RenderHTML(w io.Writer, results []*analysis.Result, o HTMLOptions) error {
	page := components.NewPage()
	page.PageTitle = "Wave-mode arrivals"
	if o.AssetsHost != "" {
		page.SetAssetsHost(o.AssetsHost)
	}
	for _, r := range results {
		for _, fig := range Figures(r, o.Unit) {
			page.AddCharts(fig.Chart(r.Source, o.AssetsHost))
		}
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

// Chart builds the echarts line chart of f, with markers drawn as vertical
// series and as mark lines on the signal.
func (f Figure) Chart(subtitle, assetsHost string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: assetsHost}),
		charts.WithTitleOpts(opts.Title{Title: f.Title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: f.XLabel, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: f.YLabel}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)

	seriesOpts := []charts.SeriesOpts{
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: "black", Width: 1}),
	}
	for _, m := range f.Markers {
		seriesOpts = append(seriesOpts,
			charts.WithMarkLineNameXAxisItemOpts(opts.MarkLineNameXAxisItem{Name: m.Label, XAxis: m.Time}))
	}
	if len(f.Markers) > 0 {
		seriesOpts = append(seriesOpts,
			charts.WithMarkLineStyleOpts(opts.MarkLineStyle{Symbol: []string{"none"}}))
	}
	line.AddSeries(f.Series, lineData(f.Time, f.Values), seriesOpts...)

	lo, hi := bounds(f.Values)
	for _, m := range f.Markers {
		kind := "solid"
		switch m.Dash {
		case Dashed:
			kind = "dashed"
		case Dotted:
			kind = "dotted"
		}
		line.AddSeries(m.Label,
			[]opts.LineData{{Value: []interface{}{m.Time, lo}}, {Value: []interface{}{m.Time, hi}}},
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: hexColor(m.Color), Width: 1.5, Type: kind}),
		)
	}
	return line
}

func lineData(t, v []float64) []opts.LineData {
	n := min(len(t), len(v))
	stride := 1
	if n > MaxChartPoints {
		stride = (n + MaxChartPoints - 1) / MaxChartPoints
	}
	out := make([]opts.LineData, 0, n/stride+1)
	for i := 0; i < n; i += stride {
		out = append(out, opts.LineData{Value: []interface{}{t[i], v[i]}})
	}
	return out
}

func bounds(v []float64) (lo, hi float64) {
	if len(v) == 0 {
		return 0, 0
	}
	return floats.Min(v), floats.Max(v)
}
