package report

import (
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/lidarml/pkg/errors"
)

// PlotPredictions saves a predicted-vs-actual scatter with the identity line.
// The image format follows the file extension (png, svg, pdf, ...).
func PlotPredictions(path, title string, actual, predicted []float64) error {
	if len(actual) == 0 {
		return errors.NewValueError("report.PlotPredictions", "no points to plot")
	}
	if len(actual) != len(predicted) {
		return errors.NewDimensionError("report.PlotPredictions", len(actual), len(predicted), 0)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Actual"
	p.Y.Label.Text = "Predicted"

	pts := make(plotter.XYs, len(actual))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range actual {
		pts[i].X = actual[i]
		pts[i].Y = predicted[i]
		lo = math.Min(lo, math.Min(actual[i], predicted[i]))
		hi = math.Max(hi, math.Max(actual[i], predicted[i]))
	}

	s, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "create scatter")
	}
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}

	ideal, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return errors.Wrap(err, "create identity line")
	}
	ideal.LineStyle.Width = vg.Points(1)
	ideal.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	ideal.LineStyle.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}

	p.Add(plotter.NewGrid(), s, ideal)
	p.Legend.Add("test rows", s)
	p.Legend.Add("y = x", ideal)
	p.Legend.Top = true
	p.Legend.Left = true

	if err := p.Save(5*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}
