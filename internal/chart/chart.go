// Package chart renders the Lorenz curve and the per-year comparison as PNG
// or SVG images with gonum/plot.
package chart

import (
	"fmt"
	"image/color"
	"io"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"echoair/internal/lorenz"
	"echoair/internal/series"
)

// Default image size.
const (
	Width  = 8 * vg.Inch
	Height = 6 * vg.Inch
)

var (
	curveColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	equalColor  = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	seriesColor = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	topColor    = color.RGBA{R: 200, G: 0, B: 0, A: 255}
)

// Format validates an image format name ("png" or "svg").
func Format(name string) (string, error) {
	switch f := strings.ToLower(name); f {
	case "png", "svg":
		return f, nil
	}
	return "", fmt.Errorf("chart: unsupported format %q", name)
}

// LorenzPlot builds the Lorenz curve plot with a dashed equality line.
func LorenzPlot(c lorenz.Curve) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Lorenz Curve of Emissions Distribution"
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = "Cumulative Share of Facilities"
	p.Y.Label.Text = "Cumulative Share of Emissions"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(c.Values))
	for i := range c.Values {
		pts[i].X, pts[i].Y = c.Shares[i], c.Values[i]
	}
	curve, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("chart: lorenz line: %w", err)
	}
	curve.LineStyle.Color = curveColor
	curve.LineStyle.Width = vg.Points(2)

	eq := plotter.XYs{
		{X: lorenz.EqualityLine[0].X, Y: lorenz.EqualityLine[0].Y},
		{X: lorenz.EqualityLine[1].X, Y: lorenz.EqualityLine[1].Y},
	}
	equality, err := plotter.NewLine(eq)
	if err != nil {
		return nil, fmt.Errorf("chart: equality line: %w", err)
	}
	equality.LineStyle.Color = equalColor
	equality.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}

	p.Add(curve, equality)
	p.Legend.Add("Lorenz Curve", curve)
	p.Legend.Add("Equality Line", equality)
	p.Legend.Top = true
	p.Legend.Left = true
	return p, nil
}

// SeriesPlot builds the per-year line chart of the selection total against
// the top facilities. Years are nominal X ticks.
func SeriesPlot(c series.Combined, title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = "REPORTING_YEAR"
	p.Y.Label.Text = "ANNUAL_EMISSION"
	p.Add(plotter.NewGrid())

	if len(c.Points) == 0 {
		return p, nil
	}

	sel := make(plotter.XYs, len(c.Points))
	top := make(plotter.XYs, len(c.Points))
	for i, pt := range c.Points {
		sel[i] = plotter.XY{X: float64(i), Y: pt.Selection}
		top[i] = plotter.XY{X: float64(i), Y: pt.Top}
	}

	for _, s := range []struct {
		name string
		xys  plotter.XYs
		col  color.Color
	}{
		{c.SelectionColumn, sel, seriesColor},
		{c.TopColumn, top, topColor},
	} {
		line, points, err := plotter.NewLinePoints(s.xys)
		if err != nil {
			return nil, fmt.Errorf("chart: series %s: %w", s.name, err)
		}
		line.LineStyle.Color = s.col
		points.GlyphStyle.Color = s.col
		p.Add(line, points)
		p.Legend.Add(s.name, line, points)
	}
	p.NominalX(c.Years()...)
	p.Y.Min = 0
	p.Legend.Top = true
	return p, nil
}

// Write renders p to w in format ("png" or "svg").
func Write(p *plot.Plot, w io.Writer, format string) error {
	f, err := Format(format)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(Width, Height, f)
	if err != nil {
		return fmt.Errorf("chart: render %s: %w", f, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("chart: write %s: %w", f, err)
	}
	return nil
}

// Lorenz renders the Lorenz curve of c to w.
func Lorenz(c lorenz.Curve, w io.Writer, format string) error {
	p, err := LorenzPlot(c)
	if err != nil {
		return err
	}
	return Write(p, w, format)
}

// Series renders the per-year comparison to w.
func Series(c series.Combined, title string, w io.Writer, format string) error {
	p, err := SeriesPlot(c, title)
	if err != nil {
		return err
	}
	return Write(p, w, format)
}
