package planning

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/mmurooka/differentiable-rmap/logging"
	"github.com/mmurooka/differentiable-rmap/rmap"
	"github.com/mmurooka/differentiable-rmap/sampling"
)

// discModel builds a single support vector model whose decision value is
// positive inside a ball of the given radius around center in input space.
func discModel(kind sampling.Kind, center []float64, radius float64) *rmap.Model {
	return &rmap.Model{
		Kind:           kind,
		Gamma:          math.Ln2 / (radius * radius),
		SupportVectors: [][]float64{center},
		Coefficients:   []float64{2},
		Rho:            1,
	}
}

func discClassifier(t *testing.T, kind sampling.Kind, center []float64, radius float64) *rmap.Classifier {
	t.Helper()
	classifier, err := rmap.NewClassifier(discModel(kind, center, radius))
	test.That(t, err, test.ShouldBeNil)
	return classifier
}

type countingPublisher struct {
	states []State
}

func (c *countingPublisher) Publish(state State) {
	c.states = append(c.states, state)
}

// scriptedPlanner feeds canned tracking errors to Run.
type scriptedPlanner struct {
	space  sampling.Space
	errs   []float64
	failAt int
	onStep func(i int)
	steps  int
}

func newScriptedPlanner(errs ...float64) *scriptedPlanner {
	space, err := sampling.NewSpace(sampling.R2)
	if err != nil {
		panic(err)
	}
	return &scriptedPlanner{space: space, errs: errs, failAt: -1}
}

func (p *scriptedPlanner) Step(ctx context.Context) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	i := p.steps
	p.steps++
	if p.onStep != nil {
		p.onStep(i)
	}
	if i == p.failAt {
		return StepResult{}, errors.New("injected step failure")
	}
	trackErr := p.errs[len(p.errs)-1]
	if i < len(p.errs) {
		trackErr = p.errs[i]
	}
	return StepResult{SolverOK: true, IKConverged: true, TrackingError: trackErr}, nil
}

func (p *scriptedPlanner) State() State {
	return State{Kind: sampling.R2}
}

func (p *scriptedPlanner) Space() sampling.Space {
	return p.space
}

func TestAdjacencyMatrix(t *testing.T) {
	adj := AdjacencyMatrix(2, 3, 0.5)
	r, c := adj.Dims()
	test.That(t, r, test.ShouldEqual, 6)
	test.That(t, c, test.ShouldEqual, 6)

	test.That(t, adj.At(0, 0), test.ShouldAlmostEqual, 1)
	test.That(t, adj.At(3, 3), test.ShouldAlmostEqual, 1)
	test.That(t, adj.At(4, 4), test.ShouldAlmostEqual, 0.5)
	test.That(t, adj.At(0, 2), test.ShouldAlmostEqual, -0.5)
	test.That(t, adj.At(2, 0), test.ShouldAlmostEqual, -0.5)
	test.That(t, adj.At(0, 4), test.ShouldAlmostEqual, 0)
	test.That(t, adj.At(0, 3), test.ShouldAlmostEqual, 0)

	// x^T A x = w (|x_0|^2 + sum |x_{i+1}-x_i|^2).
	x := mat.NewVecDense(6, []float64{1, 0, 1, 0, 1, 0})
	test.That(t, mat.Inner(x, adj, x), test.ShouldAlmostEqual, 0.5)
	y := mat.NewVecDense(6, []float64{0, 0, 1, 0, 3, 0})
	test.That(t, mat.Inner(y, adj, y), test.ShouldAlmostEqual, 0.5*(0+1+4))
}

func TestRunMaxIterations(t *testing.T) {
	logger := logging.NewTestLogger(t)
	planner := newScriptedPlanner(1)
	pub := &countingPublisher{}
	err := Run(context.Background(), planner, LoopOptions{
		MaxIterations:   10,
		Publisher:       pub,
		PublishInterval: 3,
	}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, planner.steps, test.ShouldEqual, 10)
	// Published at iterations 0, 3, 6 and 9.
	test.That(t, len(pub.states), test.ShouldEqual, 4)
}

func TestRunConvergence(t *testing.T) {
	logger := logging.NewTestLogger(t)
	planner := newScriptedPlanner(0.5, 0.3, 0.05, 0.005)
	err := Run(context.Background(), planner, LoopOptions{
		MaxIterations:     100,
		ConvergeThreshold: 0.01,
	}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, planner.steps, test.ShouldEqual, 4)
}

func TestRunCancel(t *testing.T) {
	logger := logging.NewTestLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	planner := newScriptedPlanner(1)
	planner.onStep = func(i int) {
		if i == 2 {
			cancel()
		}
	}
	err := Run(ctx, planner, LoopOptions{}, logger)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
	test.That(t, planner.steps, test.ShouldEqual, 3)
}

func TestRunStepError(t *testing.T) {
	logger := logging.NewTestLogger(t)
	planner := newScriptedPlanner(1)
	planner.failAt = 1
	err := Run(context.Background(), planner, LoopOptions{MaxIterations: 10}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "injected step failure")
	test.That(t, planner.steps, test.ShouldEqual, 2)
}

func TestRunPaced(t *testing.T) {
	logger := logging.NewTestLogger(t)
	planner := newScriptedPlanner(1)
	err := Run(context.Background(), planner, LoopOptions{
		LoopRate:      time.Millisecond,
		MaxIterations: 3,
	}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, planner.steps, test.ShouldEqual, 3)
}
