// Package export renders stored run data to PNG plots.
package export

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Series is one named trace over time.
type Series struct {
	Name   string
	Times  []float64
	Values []float64
}

// TracePNG plots the given series against time and writes a PNG.
func TracePNG(path, title string, series []Series) error {
	if len(series) == 0 {
		return fmt.Errorf("no series to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time [s]"
	p.Add(plotter.NewGrid())

	for i, s := range series {
		if len(s.Times) != len(s.Values) {
			return fmt.Errorf("series %q: %d times but %d values", s.Name, len(s.Times), len(s.Values))
		}
		pts := make(plotter.XYs, len(s.Times))
		for j := range s.Times {
			pts[j].X = s.Times[j]
			pts[j].Y = s.Values[j]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}
	p.Legend.Top = true

	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}

// PhasePNG plots one series against another, e.g. a position component
// against its velocity.
func PhasePNG(path, title, xLabel, yLabel string, xs, ys []float64) error {
	if len(xs) != len(ys) {
		return fmt.Errorf("%d x values but %d y values", len(xs), len(ys))
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	p.Add(line)

	return p.Save(6*vg.Inch, 6*vg.Inch, path)
}
