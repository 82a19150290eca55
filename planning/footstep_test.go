package planning

import (
	"context"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/mmurooka/differentiable-rmap/logging"
	"github.com/mmurooka/differentiable-rmap/qpsolver"
	"github.com/mmurooka/differentiable-rmap/sampling"
	"github.com/mmurooka/differentiable-rmap/spatialmath"
)

// chainLinkValues walks the footstep chain and evaluates the classifier on
// every step link, mirroring odd links the way the planner does.
func chainLinkValues(p *FootstepPlanner) []float64 {
	vals := make([]float64, len(p.chain))
	pre := p.identity
	for i, s := range p.chain {
		rel := p.space.RelSample(pre, s)
		if p.cfg.AlternateLR && i%2 == 1 {
			rel = sampling.MirrorSample(rel)
		}
		vals[i] = p.classifier.Value(rel)
		pre = s
	}
	return vals
}

func TestFootstepPlannerReachable(t *testing.T) {
	logger := logging.NewTestLogger(t)
	classifier := discClassifier(t, sampling.R2, []float64{0.25, 0}, 0.35)
	solver := qpsolver.NewADMMSolver(qpsolver.ADMMConfig{}, logger)

	planner, err := NewFootstepPlanner(classifier, solver, FootstepConfig{
		Kind:         sampling.R2,
		NumFootsteps: 2,
		DeltaLimit:   0.05,
		InitialStep:  spatialmath.NewPoseFromPoint(r3.Vector{X: 0.25}),
		Target:       spatialmath.NewPoseFromPoint(r3.Vector{X: 0.9, Y: 0.1}),
	}, logger)
	test.That(t, err, test.ShouldBeNil)

	// The seeded chain starts at the sweet spot of the step model.
	for _, v := range chainLinkValues(planner) {
		test.That(t, v, test.ShouldBeGreaterThan, 0.9)
	}

	err = Run(context.Background(), planner, LoopOptions{
		MaxIterations:     300,
		ConvergeThreshold: 1e-2,
	}, logger)
	test.That(t, err, test.ShouldBeNil)

	last := planner.chain[1]
	test.That(t, last[0], test.ShouldAlmostEqual, 0.9, 2e-2)
	test.That(t, last[1], test.ShouldAlmostEqual, 0.1, 2e-2)
	for _, v := range chainLinkValues(planner) {
		test.That(t, v, test.ShouldBeGreaterThan, -0.05)
	}

	state := planner.State()
	test.That(t, state.Kind, test.ShouldEqual, sampling.R2)
	test.That(t, len(state.Chains), test.ShouldEqual, 1)
	test.That(t, state.Chains[0].Name, test.ShouldEqual, FootstepChain)
	test.That(t, len(state.Chains[0].Samples), test.ShouldEqual, 2)
}

func TestFootstepPlannerUnreachableTarget(t *testing.T) {
	logger := logging.NewTestLogger(t)
	classifier := discClassifier(t, sampling.R2, []float64{0.25, 0}, 0.35)
	solver := qpsolver.NewADMMSolver(qpsolver.ADMMConfig{}, logger)

	planner, err := NewFootstepPlanner(classifier, solver, FootstepConfig{
		Kind:         sampling.R2,
		NumFootsteps: 2,
		DeltaLimit:   0.05,
		InitialStep:  spatialmath.NewPoseFromPoint(r3.Vector{X: 0.25}),
		Target:       spatialmath.NewPoseFromPoint(r3.Vector{X: 2}),
	}, logger)
	test.That(t, err, test.ShouldBeNil)

	err = Run(context.Background(), planner, LoopOptions{MaxIterations: 300}, logger)
	test.That(t, err, test.ShouldBeNil)

	// Two steps of at most 0.6 forward reach each cannot cover 2 meters. The
	// chain must stall at the reachability boundary instead of crossing it.
	last := planner.chain[1]
	test.That(t, last[0], test.ShouldBeGreaterThan, 1.0)
	test.That(t, last[0], test.ShouldBeLessThan, 1.25)
	for _, v := range chainLinkValues(planner) {
		test.That(t, v, test.ShouldBeGreaterThan, -0.1)
	}
}

func TestFootstepPlannerAlternateLR(t *testing.T) {
	logger := logging.NewTestLogger(t)
	classifier := discClassifier(t, sampling.SE2, []float64{0.2, 0.25, 1, 0}, 0.22)
	solver := qpsolver.NewADMMSolver(qpsolver.ADMMConfig{}, logger)

	planner, err := NewFootstepPlanner(classifier, solver, FootstepConfig{
		Kind:         sampling.SE2,
		NumFootsteps: 2,
		DeltaLimit:   0.05,
		AlternateLR:  true,
		InitialStep:  spatialmath.NewPoseFromPoint(r3.Vector{X: 0.2, Y: 0.25}),
		Target:       spatialmath.NewPoseFromPoint(r3.Vector{X: 0.5}),
	}, logger)
	test.That(t, err, test.ShouldBeNil)

	// Mirroring puts the second step back onto the model sweet spot.
	for _, v := range chainLinkValues(planner) {
		test.That(t, v, test.ShouldBeGreaterThan, 0.9)
	}

	err = Run(context.Background(), planner, LoopOptions{
		MaxIterations:     300,
		ConvergeThreshold: 1e-2,
	}, logger)
	test.That(t, err, test.ShouldBeNil)

	last := planner.chain[1]
	test.That(t, last[0], test.ShouldAlmostEqual, 0.5, 2e-2)
	test.That(t, last[1], test.ShouldAlmostEqual, 0, 2e-2)
	test.That(t, last[2], test.ShouldAlmostEqual, 1, 1e-2)

	// The model keeps the stance foot on its left, so the relative pose of
	// the mirrored second step crosses back under the first.
	rel := planner.space.RelSample(planner.chain[0], planner.chain[1])
	test.That(t, rel[1], test.ShouldBeLessThan, -0.02)
	for _, v := range chainLinkValues(planner) {
		test.That(t, v, test.ShouldBeGreaterThan, -0.05)
	}
}

type stubSolver struct {
	err error
}

func (s *stubSolver) Solve(ctx context.Context, qc *qpsolver.Coefficients) ([]float64, error) {
	return nil, s.err
}

func TestFootstepPlannerSolverFailure(t *testing.T) {
	logger := logging.NewTestLogger(t)
	classifier := discClassifier(t, sampling.R2, []float64{0.25, 0}, 0.35)

	planner, err := NewFootstepPlanner(classifier, &stubSolver{err: qpsolver.ErrSolveFailed}, FootstepConfig{
		Kind:         sampling.R2,
		NumFootsteps: 2,
		DeltaLimit:   0.05,
		InitialStep:  spatialmath.NewPoseFromPoint(r3.Vector{X: 0.25}),
		Target:       spatialmath.NewPoseFromPoint(r3.Vector{X: 0.9}),
	}, logger)
	test.That(t, err, test.ShouldBeNil)

	before := planner.State()
	res, err := planner.Step(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.SolverOK, test.ShouldBeFalse)
	after := planner.State()
	for i, s := range after.Chains[0].Samples {
		test.That(t, s, test.ShouldResemble, before.Chains[0].Samples[i])
	}

	planner.solver = &stubSolver{err: errors.New("solver exploded")}
	_, err = planner.Step(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "solver exploded")
}

func TestFootstepConfigValidate(t *testing.T) {
	logger := logging.NewTestLogger(t)
	classifier := discClassifier(t, sampling.R2, []float64{0.25, 0}, 0.35)
	solver := qpsolver.NewADMMSolver(qpsolver.ADMMConfig{}, logger)

	_, err := NewFootstepPlanner(classifier, solver, FootstepConfig{
		Kind:        sampling.R2,
		AlternateLR: true,
	}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "alternate_lr")

	_, err = NewFootstepPlanner(classifier, solver, FootstepConfig{
		Kind:         sampling.R2,
		NumFootsteps: -1,
	}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "footstep_num")

	_, err = NewFootstepPlanner(classifier, solver, FootstepConfig{
		Kind:       sampling.R2,
		DeltaLimit: -0.1,
	}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "delta_limit")

	_, err = NewFootstepPlanner(classifier, solver, FootstepConfig{
		Kind: sampling.R3,
	}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "classifier is trained for")
}
