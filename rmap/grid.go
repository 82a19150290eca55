package rmap

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/mmurooka/differentiable-rmap/sampling"
)

// GridSet is the decision value of a classifier discretized onto a regular
// lattice over a sample space bounding box. Values are stored at cell centers
// in row-major order (last dimension fastest). It serves coarse queries and
// visualization; no interpolation between cells is performed.
type GridSet struct {
	kind         sampling.Kind
	divideCounts []int
	min, max     sampling.Sample
	values       []float64
}

// BuildGridSet evaluates the classifier at the center of every lattice cell.
// divideCounts gives the cell count per sample dimension.
func BuildGridSet(
	ctx context.Context,
	clf *Classifier,
	divideCounts []int,
	min, max sampling.Sample,
) (*GridSet, error) {
	space := clf.Space()
	dim := space.SampleDim()
	if len(divideCounts) != dim {
		return nil, errors.Errorf("expected %d divide counts, got %d", dim, len(divideCounts))
	}
	if len(min) != dim || len(max) != dim {
		return nil, errors.Errorf("bounds must have dimension %d", dim)
	}
	total := 1
	for d, count := range divideCounts {
		if count < 1 {
			return nil, errors.Errorf("divide count for dimension %d must be at least 1, got %d", d, count)
		}
		if min[d] > max[d] {
			return nil, errors.Errorf("dimension %d has min %v above max %v", d, min[d], max[d])
		}
		total *= count
	}

	g := &GridSet{
		kind:         space.Kind(),
		divideCounts: append([]int(nil), divideCounts...),
		min:          min.Clone(),
		max:          max.Clone(),
		values:       make([]float64, total),
	}
	indices := make([]int, dim)
	for flat := 0; flat < total; flat++ {
		if flat%1024 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
		g.flatToIndices(flat, indices)
		g.values[flat] = clf.Value(g.CellCenter(indices))
	}
	return g, nil
}

// Kind returns the sampling space kind of the grid.
func (g *GridSet) Kind() sampling.Kind {
	return g.kind
}

// Len returns the total number of cells.
func (g *GridSet) Len() int {
	return len(g.values)
}

// DivideCounts returns the per-dimension cell counts.
func (g *GridSet) DivideCounts() []int {
	return append([]int(nil), g.divideCounts...)
}

// Bounds returns the lattice bounding box.
func (g *GridSet) Bounds() (sampling.Sample, sampling.Sample) {
	return g.min.Clone(), g.max.Clone()
}

// Value returns the stored decision value of a cell by flat index.
func (g *GridSet) Value(flat int) float64 {
	return g.values[flat]
}

// ValueAt returns the stored decision value of a cell by multi index.
func (g *GridSet) ValueAt(indices []int) float64 {
	return g.values[g.IndicesToFlat(indices)]
}

// CellCenter returns the sample at the center of the cell with the given
// multi index.
func (g *GridSet) CellCenter(indices []int) sampling.Sample {
	s := make(sampling.Sample, len(g.divideCounts))
	for d, idx := range indices {
		width := (g.max[d] - g.min[d]) / float64(g.divideCounts[d])
		s[d] = g.min[d] + (float64(idx)+0.5)*width
	}
	return s
}

// RatiosToIndices maps per-dimension ratios in [0, 1] to cell indices,
// clamping out-of-range ratios to the border cells.
func (g *GridSet) RatiosToIndices(ratios []float64) []int {
	indices := make([]int, len(g.divideCounts))
	for d, r := range ratios {
		idx := int(r * float64(g.divideCounts[d]))
		if idx < 0 {
			idx = 0
		}
		if idx > g.divideCounts[d]-1 {
			idx = g.divideCounts[d] - 1
		}
		indices[d] = idx
	}
	return indices
}

// SampleToIndices maps a sample inside the bounding box to its cell indices.
func (g *GridSet) SampleToIndices(s sampling.Sample) []int {
	ratios := make([]float64, len(g.divideCounts))
	for d := range ratios {
		width := g.max[d] - g.min[d]
		if width <= 0 {
			ratios[d] = 0
			continue
		}
		ratios[d] = (s[d] - g.min[d]) / width
	}
	return g.RatiosToIndices(ratios)
}

// IndicesToFlat converts a multi index to its row-major flat index.
func (g *GridSet) IndicesToFlat(indices []int) int {
	flat := 0
	for d, idx := range indices {
		flat = flat*g.divideCounts[d] + idx
	}
	return flat
}

// FlatToIndices converts a flat index to its multi index.
func (g *GridSet) FlatToIndices(flat int) []int {
	indices := make([]int, len(g.divideCounts))
	g.flatToIndices(flat, indices)
	return indices
}

func (g *GridSet) flatToIndices(flat int, indices []int) {
	for d := len(g.divideCounts) - 1; d >= 0; d-- {
		indices[d] = flat % g.divideCounts[d]
		flat /= g.divideCounts[d]
	}
}

// LoopGrid visits every cell of the sub-lattice spanned by the selected
// dimensions exactly once, with all other dimensions held at the indices in
// fixed (a full-length index vector whose selected entries are ignored). The
// callback receives the flat index and the cell center sample.
func (g *GridSet) LoopGrid(selected []int, fixed []int, fn func(flat int, s sampling.Sample)) {
	indices := append([]int(nil), fixed...)
	g.loopDim(selected, 0, indices, fn)
}

func (g *GridSet) loopDim(selected []int, depth int, indices []int, fn func(int, sampling.Sample)) {
	if depth == len(selected) {
		fn(g.IndicesToFlat(indices), g.CellCenter(indices))
		return
	}
	d := selected[depth]
	for idx := 0; idx < g.divideCounts[d]; idx++ {
		indices[d] = idx
		g.loopDim(selected, depth+1, indices, fn)
	}
}

type gridJSON struct {
	Version      int       `json:"version"`
	Space        string    `json:"space"`
	DivideCounts []int     `json:"divide_counts"`
	Min          []float64 `json:"min"`
	Max          []float64 `json:"max"`
	Values       []float64 `json:"values"`
}

const gridFormatVersion = 1

// Save writes the grid to a JSON file.
func (g *GridSet) Save(path string) error {
	data, err := json.Marshal(gridJSON{
		Version:      gridFormatVersion,
		Space:        g.kind.String(),
		DivideCounts: g.divideCounts,
		Min:          g.min,
		Max:          g.max,
		Values:       g.values,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadGridSet reads a grid from a JSON file.
func LoadGridSet(path string) (*GridSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var in gridJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, errors.Wrapf(err, "parsing grid set %s", path)
	}
	kind, err := sampling.KindFromString(in.Space)
	if err != nil {
		return nil, err
	}
	space, err := sampling.NewSpace(kind)
	if err != nil {
		return nil, err
	}
	dim := space.SampleDim()
	if len(in.DivideCounts) != dim || len(in.Min) != dim || len(in.Max) != dim {
		return nil, errors.Errorf("grid set %s does not match the %s dimension %d", path, kind, dim)
	}
	total := 1
	for _, count := range in.DivideCounts {
		if count < 1 {
			return nil, errors.Errorf("grid set %s has a non-positive divide count", path)
		}
		total *= count
	}
	if len(in.Values) != total {
		return nil, errors.Errorf("grid set %s has %d values, expected %d", path, len(in.Values), total)
	}
	return &GridSet{
		kind:         kind,
		divideCounts: in.DivideCounts,
		min:          in.Min,
		max:          in.Max,
		values:       in.Values,
	}, nil
}
