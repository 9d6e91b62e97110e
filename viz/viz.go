// Package viz renders the evaluation plots with gonum/plot. The image format
// follows the file extension (png, svg, pdf, ...).
package viz

import (
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/taxitip/pkg/errors"
)

var (
	pointColor = color.RGBA{R: 20, G: 80, B: 200, A: 160}
	lineColor  = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	barColor   = color.RGBA{R: 40, G: 120, B: 40, A: 255}
)

// Scatter plots predicted against actual values with a y = x reference line.
func Scatter(path, title string, actual, predicted []float64) error {
	if len(actual) != len(predicted) {
		return errors.NewDimensionError("viz.Scatter", len(actual), len(predicted), 0)
	}
	if len(actual) == 0 {
		return errors.NewModelError("viz.Scatter", "nothing to plot", errors.ErrEmptyData)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "actual tip_amount"
	p.Y.Label.Text = "predicted tip_amount"
	p.Add(plotter.NewGrid())

	xys := make(plotter.XYs, len(actual))
	for i := range actual {
		xys[i] = plotter.XY{X: actual[i], Y: predicted[i]}
	}
	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return errors.Wrap(err, "viz.Scatter")
	}
	sc.GlyphStyle.Color = pointColor
	sc.GlyphStyle.Radius = vg.Points(1.8)
	p.Add(sc)
	p.Legend.Add("predictions", sc)

	lo, hi := bounds(actual, predicted)
	ref, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return errors.Wrap(err, "viz.Scatter")
	}
	ref.Color = lineColor
	ref.Width = vg.Points(1)
	ref.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(ref)
	p.Legend.Add("y = x", ref)
	p.Legend.Top = true
	p.Legend.Left = true

	p.X.Min, p.X.Max = lo, hi
	p.Y.Min, p.Y.Max = lo, hi
	return save(p, 8*vg.Inch, 6*vg.Inch, path)
}

// Importances draws one horizontal bar per feature.
func Importances(path, title string, names []string, values []float64) error {
	if len(names) != len(values) {
		return errors.NewDimensionError("viz.Importances", len(names), len(values), 0)
	}
	if len(values) == 0 {
		return errors.NewModelError("viz.Importances", "nothing to plot", errors.ErrEmptyData)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "importance"
	p.Add(plotter.NewGrid())

	bars, err := plotter.NewBarChart(plotter.Values(values), vg.Points(14))
	if err != nil {
		return errors.Wrap(err, "viz.Importances")
	}
	bars.Horizontal = true
	bars.Color = barColor
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalY(names...)
	p.X.Min = 0

	height := vg.Length(len(values))*vg.Points(22) + 2*vg.Inch
	return save(p, 8*vg.Inch, height, path)
}

// bounds returns a padded common range for both axes.
func bounds(a, b []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, s := range [][]float64{a, b} {
		for _, v := range s {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if lo > hi {
		return -1, 1
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = 1
	}
	return lo - pad, hi + pad
}

func save(p *plot.Plot, w, h vg.Length, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create plot directory for %s", path)
	}
	if err := p.Save(w, h, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}
