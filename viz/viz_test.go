package viz

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/mmurooka/differentiable-rmap/logging"
	"github.com/mmurooka/differentiable-rmap/planning"
	"github.com/mmurooka/differentiable-rmap/rmap"
	"github.com/mmurooka/differentiable-rmap/sampling"
)

func discClassifier(t *testing.T, kind sampling.Kind, center []float64, radius float64) *rmap.Classifier {
	t.Helper()
	classifier, err := rmap.NewClassifier(&rmap.Model{
		Kind:           kind,
		Gamma:          math.Ln2 / (radius * radius),
		SupportVectors: [][]float64{center},
		Coefficients:   []float64{2},
		Rho:            1,
	})
	test.That(t, err, test.ShouldBeNil)
	return classifier
}

func assertImageFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)
}

func TestDrawChain2D(t *testing.T) {
	dir := t.TempDir()

	st := planning.State{
		Kind: sampling.R2,
		Chains: []planning.NamedChain{
			{Name: "a", Samples: []sampling.Sample{{0, 0}, {0.2, 0.1}, {0.4, 0}}},
			{Name: "b", Samples: []sampling.Sample{{0.1, -0.2}}},
		},
		Target: sampling.Sample{0.6, 0},
	}
	path := filepath.Join(dir, "chain_r2.png")
	test.That(t, DrawChain2D(st, DrawConfig{}, path), test.ShouldBeNil)
	assertImageFile(t, path)

	yaw := math.Pi / 6
	stSE2 := planning.State{
		Kind: sampling.SE2,
		Chains: []planning.NamedChain{
			{Name: "footsteps", Samples: []sampling.Sample{
				{0, 0, 1, 0},
				{0.2, 0.1, math.Cos(yaw), math.Sin(yaw)},
			}},
		},
		Target: sampling.Sample{0.5, 0, 1, 0},
	}
	path = filepath.Join(dir, "chain_se2.png")
	test.That(t, DrawChain2D(stSE2, DrawConfig{Scale: 400}, path), test.ShouldBeNil)
	assertImageFile(t, path)
}

func TestPlotGridSlice(t *testing.T) {
	dir := t.TempDir()
	classifier := discClassifier(t, sampling.R2, []float64{0.2, 0}, 0.4)
	grid, err := rmap.BuildGridSet(context.Background(), classifier,
		[]int{8, 8}, sampling.Sample{-1, -1}, sampling.Sample{1, 1})
	test.That(t, err, test.ShouldBeNil)

	path := filepath.Join(dir, "slice.png")
	test.That(t, PlotGridSlice(grid, 0, 1, []int{0, 0}, path), test.ShouldBeNil)
	assertImageFile(t, path)

	err = PlotGridSlice(grid, 0, 0, []int{0, 0}, filepath.Join(dir, "bad.png"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "must differ")

	err = PlotGridSlice(grid, 0, 2, []int{0, 0}, filepath.Join(dir, "bad.png"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "out of range")

	err = PlotGridSlice(grid, 0, 1, []int{0}, filepath.Join(dir, "bad.png"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "fixed indices")
}

func TestPlotAccuracySweep(t *testing.T) {
	dir := t.TempDir()
	result := &rmap.SweepResult{
		Points: []rmap.SweepPoint{
			{Threshold: -0.5, Accuracy: rmap.Accuracy{TrueReachable: 8, FalseReachable: 4}},
			{Threshold: 0, Accuracy: rmap.Accuracy{TrueReachable: 7, TrueUnreachable: 3, FalseReachable: 1, FalseUnreachable: 1}},
			{Threshold: 0.5, Accuracy: rmap.Accuracy{TrueUnreachable: 4, FalseUnreachable: 8}},
		},
	}
	path := filepath.Join(dir, "sweep.png")
	test.That(t, PlotAccuracySweep(result, path), test.ShouldBeNil)
	assertImageFile(t, path)

	err := PlotAccuracySweep(&rmap.SweepResult{}, filepath.Join(dir, "bad.png"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestImagePublisher(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	logger := logging.NewTestLogger(t)
	pub, err := NewImagePublisher(dir, DrawConfig{Width: 200, Height: 150}, logger)
	test.That(t, err, test.ShouldBeNil)

	st := planning.State{
		Kind:   sampling.R2,
		Chains: []planning.NamedChain{{Name: "a", Samples: []sampling.Sample{{0, 0}, {0.1, 0}}}},
		Target: sampling.Sample{0.2, 0},
	}
	pub.Publish(st)
	pub.Publish(st)
	pub.Flush()

	assertImageFile(t, filepath.Join(dir, "frame_0000.png"))
	assertImageFile(t, filepath.Join(dir, "frame_0001.png"))
}
