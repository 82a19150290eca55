package viz

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/mmurooka/differentiable-rmap/rmap"
)

// gridSliceXYZ adapts a two dimensional slice of a grid set to the heat map
// plotter, with the remaining dimensions pinned at fixed indices.
type gridSliceXYZ struct {
	g          *rmap.GridSet
	xDim, yDim int
	indices    []int
	counts     []int
	min, max   []float64
}

func (s *gridSliceXYZ) Dims() (int, int) {
	return s.counts[s.xDim], s.counts[s.yDim]
}

func (s *gridSliceXYZ) Z(c, r int) float64 {
	s.indices[s.xDim] = c
	s.indices[s.yDim] = r
	return s.g.ValueAt(s.indices)
}

func (s *gridSliceXYZ) X(c int) float64 {
	return s.center(s.xDim, c)
}

func (s *gridSliceXYZ) Y(r int) float64 {
	return s.center(s.yDim, r)
}

func (s *gridSliceXYZ) center(d, idx int) float64 {
	width := (s.max[d] - s.min[d]) / float64(s.counts[d])
	return s.min[d] + (float64(idx)+0.5)*width
}

// PlotGridSlice renders the decision values of a grid set over the plane
// spanned by xDim and yDim as a heat map PNG. fixed is a full-length index
// vector pinning the remaining dimensions; its xDim and yDim entries are
// ignored.
func PlotGridSlice(g *rmap.GridSet, xDim, yDim int, fixed []int, path string) error {
	counts := g.DivideCounts()
	dim := len(counts)
	if xDim < 0 || xDim >= dim || yDim < 0 || yDim >= dim {
		return errors.Errorf("slice dimensions (%d, %d) out of range for a %d dimensional grid", xDim, yDim, dim)
	}
	if xDim == yDim {
		return errors.New("slice dimensions must differ")
	}
	if len(fixed) != dim {
		return errors.Errorf("expected %d fixed indices, got %d", dim, len(fixed))
	}
	min, max := g.Bounds()

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s decision values", g.Kind())
	p.X.Label.Text = fmt.Sprintf("dim %d", xDim)
	p.Y.Label.Text = fmt.Sprintf("dim %d", yDim)

	hm := plotter.NewHeatMap(&gridSliceXYZ{
		g:       g,
		xDim:    xDim,
		yDim:    yDim,
		indices: append([]int(nil), fixed...),
		counts:  counts,
		min:     min,
		max:     max,
	}, palette.Heat(16, 1))
	p.Add(hm)

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "writing grid slice plot %s", path)
	}
	return nil
}

// PlotAccuracySweep renders accuracy, precision and recall against the
// decision threshold as a line plot PNG.
func PlotAccuracySweep(result *rmap.SweepResult, path string) error {
	if len(result.Points) == 0 {
		return errors.New("sweep result has no points")
	}

	p := plot.New()
	p.Title.Text = "classification accuracy sweep"
	p.X.Label.Text = "threshold"
	p.Y.Label.Text = "rate"
	p.Y.Min, p.Y.Max = 0, 1

	curves := []struct {
		name string
		eval func(rmap.Accuracy) float64
	}{
		{"accuracy", rmap.Accuracy.Rate},
		{"precision", rmap.Accuracy.Precision},
		{"recall", rmap.Accuracy.Recall},
	}
	for i, curve := range curves {
		pts := make(plotter.XYs, len(result.Points))
		for j, point := range result.Points {
			pts[j] = plotter.XY{X: point.Threshold, Y: curve.eval(point.Accuracy)}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = chainColors[i%len(chainColors)]
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(curve.name, line)
	}
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "writing accuracy sweep plot %s", path)
	}
	return nil
}
