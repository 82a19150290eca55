package rmap

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/mmurooka/differentiable-rmap/sampling"
)

// randomModel builds a small model with support vectors lifted from random
// samples of the space.
func randomModel(t *testing.T, kind sampling.Kind, rnd *rand.Rand) *Model {
	t.Helper()
	space, err := sampling.NewSpace(kind)
	test.That(t, err, test.ShouldBeNil)
	model := &Model{Kind: kind, Gamma: 1.5, Rho: 0.2}
	for i := 0; i < 8; i++ {
		in := space.SampleToInput(space.RandomSample(rnd))
		model.SupportVectors = append(model.SupportVectors, in)
		coeff := 1.0
		if i%2 == 1 {
			coeff = -0.7
		}
		model.Coefficients = append(model.Coefficients, coeff)
	}
	return model
}

func TestNewClassifierValidation(t *testing.T) {
	_, err := NewClassifier(&Model{Kind: sampling.Kind(42)})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewClassifier(&Model{Kind: sampling.R2, Gamma: 1})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no support vectors")

	_, err = NewClassifier(&Model{
		Kind:           sampling.R2,
		Gamma:          1,
		SupportVectors: [][]float64{{1, 2, 3}},
		Coefficients:   []float64{1},
	})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "dimension")

	_, err = NewClassifier(&Model{
		Kind:           sampling.R2,
		SupportVectors: [][]float64{{1, 2}},
		Coefficients:   []float64{1},
	})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "gamma")
}

func TestValueSingleSupportVector(t *testing.T) {
	clf, err := NewClassifier(&Model{
		Kind:           sampling.R2,
		Gamma:          1,
		SupportVectors: [][]float64{{0, 0}},
		Coefficients:   []float64{1},
	})
	test.That(t, err, test.ShouldBeNil)

	test.That(t, clf.Value(sampling.Sample{0, 0}), test.ShouldAlmostEqual, 1)
	test.That(t, clf.Value(sampling.Sample{1, 0}), test.ShouldAlmostEqual, math.Exp(-1), 1e-12)
	test.That(t, clf.Value(sampling.Sample{1, 1}), test.ShouldAlmostEqual, math.Exp(-2), 1e-12)
	test.That(t, clf.Reachable(sampling.Sample{0, 0}, 0.5), test.ShouldBeTrue)
	test.That(t, clf.Reachable(sampling.Sample{2, 2}, 0.5), test.ShouldBeFalse)
}

func TestGradientMatchesFiniteDifference(t *testing.T) {
	const h = 1e-5
	rnd := rand.New(rand.NewSource(41))
	for _, kind := range sampling.Kinds() {
		model := randomModel(t, kind, rnd)
		clf, err := NewClassifier(model)
		test.That(t, err, test.ShouldBeNil)
		space := clf.Space()

		for trial := 0; trial < 10; trial++ {
			s := space.RandomSample(rnd)
			grad := clf.Gradient(s)
			test.That(t, grad, test.ShouldHaveLength, space.VelDim())
			for k := 0; k < space.VelDim(); k++ {
				dv := make(sampling.Velocity, space.VelDim())
				dv[k] = h
				plus := clf.Value(space.IntegrateVel(s, dv))
				dv[k] = -h
				minus := clf.Value(space.IntegrateVel(s, dv))
				want := (plus - minus) / (2 * h)
				test.That(t, grad[k], test.ShouldAlmostEqual, want, 1e-5)
			}
		}
	}
}

func TestGradientIsAscentDirection(t *testing.T) {
	clf, err := NewClassifier(&Model{
		Kind:           sampling.SE2,
		Gamma:          2,
		SupportVectors: [][]float64{{0, 0, 1, 0}},
		Coefficients:   []float64{1},
	})
	test.That(t, err, test.ShouldBeNil)

	s := sampling.Sample{0.5, -0.3, math.Cos(0.4), math.Sin(0.4)}
	grad := clf.Gradient(s)
	var norm float64
	for _, g := range grad {
		norm += g * g
	}
	test.That(t, norm, test.ShouldBeGreaterThan, 0.0)

	step := make(sampling.Velocity, len(grad))
	for i := range grad {
		step[i] = 0.05 * grad[i] / math.Sqrt(norm)
	}
	moved := clf.Space().IntegrateVel(s, step)
	test.That(t, clf.Value(moved), test.ShouldBeGreaterThan, clf.Value(s))
}

func TestModelSaveLoad(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	model := randomModel(t, sampling.SE3, rnd)
	clf, err := NewClassifier(model)
	test.That(t, err, test.ShouldBeNil)

	path := filepath.Join(t.TempDir(), "model.json")
	test.That(t, model.Save(path), test.ShouldBeNil)

	loaded, err := LoadModel(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.Space().Kind(), test.ShouldEqual, sampling.SE3)

	space := clf.Space()
	for i := 0; i < 10; i++ {
		s := space.RandomSample(rnd)
		test.That(t, loaded.Value(s), test.ShouldAlmostEqual, clf.Value(s), 1e-12)
	}
}
