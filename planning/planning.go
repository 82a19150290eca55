// Package planning implements incremental QP planners over trained
// reachability models.
//
// A planner keeps one or more chains of pose samples and, each iteration,
// linearizes the reachability constraint of every chain link at its current
// relative sample, assembles a quadratic program whose variables are per
// entry velocity increments, and integrates the solution back onto the
// chains. Planners are fail safe with respect to the QP solver: a failed
// solve leaves the chains untouched for that iteration and the loop
// continues.
package planning

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"gonum.org/v1/gonum/mat"

	"github.com/mmurooka/differentiable-rmap/logging"
	"github.com/mmurooka/differentiable-rmap/sampling"
)

// Chain names used in published states.
const (
	FootstepChain        = "footsteps"
	PlacementChain       = "placement"
	ReachingChain        = "reaching"
	ReachingTargetsChain = "reaching_targets"
	FootChain            = "feet"
	HandChain            = "hands"
)

// StepResult reports the outcome of one planning iteration.
type StepResult struct {
	// SolverOK is false when the QP solver failed and the zero velocity
	// fallback left the chains unchanged.
	SolverOK bool
	// TrackingError is the norm of the velocity space error between the
	// tracked chain entry and its target at the start of the iteration.
	TrackingError float64
	// IKConverged is false when a planner with an IK stage could not realize
	// a reaching pose within tolerance this iteration. Planners without an
	// IK stage always report true.
	IKConverged bool
}

// NamedChain is one chain of samples in a published state.
type NamedChain struct {
	Name    string
	Samples []sampling.Sample
}

// State is a snapshot of a planner's chains and target. Snapshots are
// copies; holding one across iterations is safe.
type State struct {
	Kind   sampling.Kind
	Chains []NamedChain
	Target sampling.Sample
}

// Planner advances chains of samples toward a target one QP step at a time.
type Planner interface {
	// Step runs one planning iteration. Solver failures are contained and
	// reported through the result; an error means the iteration could not
	// run at all.
	Step(ctx context.Context) (StepResult, error)
	// State returns a snapshot of the current chains and target.
	State() State
	// Space returns the sampling space the planner operates in.
	Space() sampling.Space
}

// Publisher hands planner state snapshots to an external sink, fire and
// forget.
type Publisher interface {
	Publish(state State)
}

// LoopOptions configure Run. The zero value runs unpaced until convergence
// or cancellation without publishing.
type LoopOptions struct {
	// LoopRate paces iterations. Zero runs without pacing.
	LoopRate time.Duration
	// MaxIterations stops the loop after a fixed horizon. Zero runs until
	// convergence or cancellation.
	MaxIterations int
	// ConvergeThreshold stops the loop once the tracking error of a
	// successfully solved iteration falls below it. Zero disables the check.
	ConvergeThreshold float64
	// Publisher receives a state snapshot after every PublishInterval-th
	// iteration, starting with the first.
	Publisher Publisher
	// PublishInterval defaults to every iteration when a Publisher is set.
	PublishInterval int
	// Clock allows tests to control pacing. Defaults to the wall clock.
	Clock clock.Clock
}

// Run drives a planner until it converges, exhausts MaxIterations, or the
// context is cancelled. Cancellation between iterations returns the
// context's error; the other two outcomes return nil.
func Run(ctx context.Context, p Planner, opts LoopOptions, logger logging.Logger) error {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	var ticker *clock.Ticker
	if opts.LoopRate > 0 {
		ticker = clk.Ticker(opts.LoopRate)
		defer ticker.Stop()
	}
	publishInterval := opts.PublishInterval
	if publishInterval <= 0 {
		publishInterval = 1
	}

	for iter := 0; ; iter++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := p.Step(ctx)
		if err != nil {
			return err
		}
		if opts.Publisher != nil && iter%publishInterval == 0 {
			opts.Publisher.Publish(p.State())
		}
		if opts.ConvergeThreshold > 0 && res.SolverOK && res.TrackingError < opts.ConvergeThreshold {
			logger.Infow("planning converged",
				"iterations", iter+1, "tracking_error", res.TrackingError)
			return nil
		}
		if opts.MaxIterations > 0 && iter+1 >= opts.MaxIterations {
			logger.Infow("planning finished",
				"iterations", iter+1, "tracking_error", res.TrackingError)
			return nil
		}
		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	}
}

// AdjacencyMatrix returns the quadratic form coupling consecutive entries of
// an n entry chain with velocity dimension velDim. As a regularizer it
// realizes (w/2)(|x_0|^2 + sum |x_{i+1}-x_i|^2) over stacked velocity space
// coordinates x, anchoring the chain start at the identity.
func AdjacencyMatrix(velDim, n int, w float64) *mat.SymDense {
	m := mat.NewSymDense(velDim*n, nil)
	for i := 0; i < n; i++ {
		d := 2 * w
		if i == n-1 {
			d = w
		}
		for k := 0; k < velDim; k++ {
			m.SetSym(i*velDim+k, i*velDim+k, d)
		}
		if i != n-1 {
			for k := 0; k < velDim; k++ {
				m.SetSym(i*velDim+k, (i+1)*velDim+k, -w)
			}
		}
	}
	return m
}

// slackLimit bounds slack variables where planners soften the reachability
// constraint; it stands in for an unbounded variable without upsetting the
// solver.
const slackLimit = 1e10

// setIneqBlock writes -grad^T*jac into row of m starting at column col.
func setIneqBlock(m *mat.Dense, row, col int, grad sampling.Velocity, jac *mat.Dense) {
	_, cols := jac.Dims()
	for j := 0; j < cols; j++ {
		var sum float64
		for k, g := range grad {
			sum += g * jac.At(k, j)
		}
		m.Set(row, col+j, -sum)
	}
}

// addDiag adds v to the diagonal entries [lo, hi) of m.
func addDiag(m *mat.SymDense, lo, hi int, v float64) {
	for i := lo; i < hi; i++ {
		m.SetSym(i, i, m.At(i, i)+v)
	}
}

// setDiag sets the diagonal entries [lo, hi) of m to v.
func setDiag(m *mat.SymDense, lo, hi int, v float64) {
	for i := lo; i < hi; i++ {
		m.SetSym(i, i, v)
	}
}
