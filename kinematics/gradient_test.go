package kinematics

import (
	"context"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/mmurooka/differentiable-rmap/logging"
	"github.com/mmurooka/differentiable-rmap/spatialmath"
)

func TestGradientIKPositionOnly(t *testing.T) {
	logger := logging.NewTestLogger(t)
	chain, err := NewPlanarChain("arm", []float64{1, 1}, Limit{Min: -math.Pi, Max: math.Pi})
	test.That(t, err, test.ShouldBeNil)

	solver := NewGradientIK(chain, IKConfig{
		Tolerance:     1e-6,
		MaxIterations: 500,
		GoalMetric:    NewPositionOnlyMetric,
	}, logger)

	goal := spatialmath.NewPoseFromPoint(r3.Vector{X: 1.2, Y: 0.5})
	q, score, err := solver.Solve(context.Background(), goal, []float64{0.1, 0.1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, score, test.ShouldBeLessThanOrEqualTo, 1e-6)

	pose, err := chain.Transform(q)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.Point().Distance(goal.Point()), test.ShouldBeLessThan, 1e-2)
}

func TestGradientIKFullPose(t *testing.T) {
	logger := logging.NewTestLogger(t)
	chain, err := NewPlanarChain("arm", []float64{1, 0.8, 0.5}, Limit{Min: -math.Pi, Max: math.Pi})
	test.That(t, err, test.ShouldBeNil)

	want := []float64{0.4, -0.3, 0.6}
	goal, err := chain.Transform(want)
	test.That(t, err, test.ShouldBeNil)

	solver := NewGradientIK(chain, IKConfig{Tolerance: 1e-6, MaxIterations: 500}, logger)
	seed := []float64{0.2, -0.1, 0.4}
	q, score, err := solver.Solve(context.Background(), goal, seed)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, score, test.ShouldBeLessThanOrEqualTo, 1e-6)

	pose, err := chain.Transform(q)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.PoseAlmostEqual(pose, goal, 1e-2), test.ShouldBeTrue)
}

func TestGradientIKUnreachable(t *testing.T) {
	logger := logging.NewTestLogger(t)
	chain, err := NewPlanarChain("arm", []float64{1, 1}, Limit{Min: -math.Pi, Max: math.Pi})
	test.That(t, err, test.ShouldBeNil)

	solver := NewGradientIK(chain, IKConfig{
		MaxIterations: 50,
		Restarts:      2,
		GoalMetric:    NewPositionOnlyMetric,
	}, logger)

	goal := spatialmath.NewPoseFromPoint(r3.Vector{X: 5})
	q, score, err := solver.Solve(context.Background(), goal, []float64{0, 0})
	test.That(t, errors.Is(err, ErrIKFailed), test.ShouldBeTrue)
	test.That(t, q, test.ShouldNotBeNil)
	// The closest reachable point is (2, 0), squared distance 9 from the goal.
	test.That(t, score, test.ShouldBeGreaterThan, 1)
}

func TestGradientIKSeedLength(t *testing.T) {
	logger := logging.NewTestLogger(t)
	chain, err := NewPlanarChain("arm", []float64{1, 1}, Limit{Min: -math.Pi, Max: math.Pi})
	test.That(t, err, test.ShouldBeNil)

	solver := NewGradientIK(chain, IKConfig{}, logger)
	_, _, err = solver.Solve(context.Background(), spatialmath.NewZeroPose(), []float64{0})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestGradientIKCancel(t *testing.T) {
	logger := logging.NewTestLogger(t)
	chain, err := NewPlanarChain("arm", []float64{1, 1}, Limit{Min: -math.Pi, Max: math.Pi})
	test.That(t, err, test.ShouldBeNil)

	solver := NewGradientIK(chain, IKConfig{GoalMetric: NewPositionOnlyMetric}, logger)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = solver.Solve(ctx, spatialmath.NewPoseFromPoint(r3.Vector{X: 1.5}), []float64{0, 0})
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}
