package sim

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// NewTrackPlot creates new plot of a tracked trajectory from three data sources:
// truth:    true object positions
// measure:  measured positions
// estimate: tracker position estimates
// Each data matrix stores [x, y] points in its rows.
// It returns error if the plot fails to be created. This can be due to either of the following conditions:
// * either of the supplied data matrices is nil
// * either of the supplied data matrices does not have at least 2 columns
// * gonum plot fails to be created
func NewTrackPlot(truth, measure, estimate *mat.Dense) (*plot.Plot, error) {
	if truth == nil || measure == nil || estimate == nil {
		return nil, fmt.Errorf("invalid data supplied")
	}

	_, ct := truth.Dims()
	_, cm := measure.Dims()
	_, ce := estimate.Dims()

	if ct < 2 || cm < 2 || ce < 2 {
		return nil, fmt.Errorf("invalid data dimensions")
	}

	p := plot.New()

	p.Title.Text = "CTRV tracking"
	p.X.Label.Text = "px [m]"
	p.Y.Label.Text = "py [m]"

	legend := plot.NewLegend()
	legend.Top = true
	p.Legend = legend

	// true trajectory as a line
	truthLine, err := plotter.NewLine(makePoints(truth))
	if err != nil {
		return nil, err
	}
	truthLine.LineStyle.Color = color.RGBA{R: 255, B: 128, A: 255}
	truthLine.LineStyle.Width = vg.Points(1)

	p.Add(truthLine)
	p.Legend.Add("truth", truthLine)

	// measurements as a scatter
	measScatter, err := plotter.NewScatter(makePoints(measure))
	if err != nil {
		return nil, err
	}
	measScatter.GlyphStyle.Color = color.RGBA{G: 255, A: 128}
	measScatter.GlyphStyle.Radius = vg.Points(2)

	p.Add(measScatter)
	p.Legend.Add("measurement", measScatter)

	// estimates as a scatter
	estScatter, err := plotter.NewScatter(makePoints(estimate))
	if err != nil {
		return nil, fmt.Errorf("failed to create scatter: %w", err)
	}
	estScatter.GlyphStyle.Color = color.RGBA{R: 169, G: 169, B: 169}
	estScatter.Shape = draw.CrossGlyph{}
	estScatter.GlyphStyle.Radius = vg.Points(3)

	p.Add(estScatter)
	p.Legend.Add("estimate", estScatter)

	return p, nil
}

func makePoints(m *mat.Dense) plotter.XYs {
	r, _ := m.Dims()
	pts := make(plotter.XYs, r)
	for i := 0; i < r; i++ {
		pts[i].X = m.At(i, 0)
		pts[i].Y = m.At(i, 1)
	}

	return pts
}
