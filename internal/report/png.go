package report

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/wavemode/internal/analysis"
	"github.com/banshee-data/wavemode/internal/fsutil"
	"github.com/banshee-data/wavemode/internal/security"
)

// Figure size on disk.
const (
	figureWidth  = 10 * vg.Inch
	figureHeight = 5 * vg.Inch
)

// WritePNG renders the three figures of r into dir as
// <source>_<figure>.png and returns the paths written.
func WritePNG(fsys fsutil.FileSystem, dir string, r *analysis.Result, unit string) ([]string, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}
	base := security.SanitizeFilename(r.Source)

	var paths []string
	for _, fig := range Figures(r, unit) {
		p, err := fig.Plot()
		if err != nil {
			return paths, fmt.Errorf("%s: %w", fig.Name, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", base, fig.Name))
		if err := savePlot(fsys, p, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Plot builds the gonum plot of f.
func (f Figure) Plot() (*plot.Plot, error) {
	n := min(len(f.Time), len(f.Values))
	if n == 0 {
		return nil, fmt.Errorf("no samples to plot")
	}

	p := plot.New()
	p.Title.Text = f.Title
	p.X.Label.Text = f.XLabel
	p.Y.Label.Text = f.YLabel
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, n)
	for i := range pts {
		pts[i] = plotter.XY{X: f.Time[i], Y: f.Values[i]}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add(f.Series, line)

	lo, hi := floats.Min(f.Values[:n]), floats.Max(f.Values[:n])
	for _, m := range f.Markers {
		ml, err := plotter.NewLine(plotter.XYs{{X: m.Time, Y: lo}, {X: m.Time, Y: hi}})
		if err != nil {
			return nil, err
		}
		ml.Color = m.Color
		ml.Width = vg.Points(1.5)
		switch m.Dash {
		case Dashed:
			ml.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
		case Dotted:
			ml.Dashes = []vg.Length{vg.Points(1.5), vg.Points(2)}
		}
		p.Add(ml)
		p.Legend.Add(m.Label, ml)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

func savePlot(fsys fsutil.FileSystem, p *plot.Plot, path string) error {
	wt, err := p.WriterTo(figureWidth, figureHeight, "png")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
