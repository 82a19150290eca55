//go:build !windows && !no_cgo

package kinematics

import (
	"context"
	"math"
	"math/rand"

	"github.com/go-nlopt/nlopt"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/mmurooka/differentiable-rmap/logging"
	"github.com/mmurooka/differentiable-rmap/spatialmath"
)

const (
	defaultNloptEvals = 4001
	defaultJump       = 1e-8
)

// NloptIK solves inverse kinematics with NLopt's SLSQP implementation. It
// requires cgo and the system NLopt library.
type NloptIK struct {
	frame      Frame
	cfg        IKConfig
	lowerBound []float64
	upperBound []float64
	logger     logging.Logger
}

type optimizeReturn struct {
	solution []float64
	score    float64
	err      error
}

// NewNloptIK returns a solver backed by NLopt.
func NewNloptIK(frame Frame, cfg IKConfig, logger logging.Logger) (*NloptIK, error) {
	cfg = cfg.withDefaults()
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = defaultNloptEvals
	}
	lower, upper := limitsToArrays(frame.DoF())
	if len(lower) == 0 {
		return nil, errors.New("cannot solve for a frame with no degrees of freedom")
	}
	return &NloptIK{frame: frame, cfg: cfg, lowerBound: lower, upperBound: upper, logger: logger}, nil
}

// Solve implements Solver.
func (ik *NloptIK) Solve(ctx context.Context, goal spatialmath.Pose, seed []float64) ([]float64, float64, error) {
	dof := len(ik.lowerBound)
	if len(seed) != dof {
		return nil, 0, errors.Errorf("got %d seed values, want %d", len(seed), dof)
	}
	metric := ik.cfg.GoalMetric(goal)
	//nolint:gosec
	rnd := rand.New(rand.NewSource(ik.cfg.Seed))

	// Determine optimal jump values; if the default yields a zero gradient,
	// increase to avoid underflow.
	jump, err := ik.calcJump(defaultJump, seed, metric)
	if err != nil {
		return nil, 0, err
	}

	opt, err := nlopt.NewNLopt(nlopt.LD_SLSQP, uint(dof))
	if err != nil {
		return nil, 0, errors.Wrap(err, "nlopt creation error")
	}
	defer opt.Destroy()

	var transformErr error
	minFunc := func(x, gradient []float64) float64 {
		pose, err := ik.frame.Transform(x)
		if err != nil {
			transformErr = multierr.Combine(transformErr, err, opt.ForceStop())
			return 0
		}
		dist := metric(pose)
		if len(gradient) > 0 {
			inputs := append(make([]float64, 0, len(x)), x...)
			for i := range gradient {
				flip := false
				inputs[i] += jump[i]
				if inputs[i] >= ik.upperBound[i] {
					flip = true
					inputs[i] -= 2 * jump[i]
				}
				pose, err := ik.frame.Transform(inputs)
				if err != nil {
					transformErr = multierr.Combine(transformErr, err, opt.ForceStop())
					return 0
				}
				gradient[i] = (metric(pose) - dist) / jump[i]
				if flip {
					inputs[i] += jump[i]
					gradient[i] *= -1
				} else {
					inputs[i] -= jump[i]
				}
			}
		}
		return dist
	}

	err = multierr.Combine(
		opt.SetFtolRel(ik.cfg.Tolerance),
		opt.SetFtolAbs(ik.cfg.Tolerance),
		opt.SetLowerBounds(ik.lowerBound),
		opt.SetStopVal(ik.cfg.Tolerance),
		opt.SetUpperBounds(ik.upperBound),
		opt.SetXtolRel(ik.cfg.Tolerance),
		opt.SetXtolAbs1(ik.cfg.Tolerance),
		opt.SetMinObjective(minFunc),
		opt.SetMaxEval(ik.cfg.MaxIterations),
	)
	if err != nil {
		return nil, 0, err
	}

	var best []float64
	bestScore := math.Inf(1)
	startingPos := append(make([]float64, 0, dof), seed...)
	solveChan := make(chan *optimizeReturn, 1)
	for attempt := 0; attempt <= ik.cfg.Restarts; attempt++ {
		pos := startingPos
		utils.PanicCapturingGo(func() {
			solutionRaw, result, nloptErr := opt.Optimize(pos)
			solveChan <- &optimizeReturn{solutionRaw, result, nloptErr}
		})
		var solution *optimizeReturn
		select {
		case <-ctx.Done():
			stopErr := opt.ForceStop()
			<-solveChan
			return nil, 0, multierr.Combine(ctx.Err(), stopErr)
		case solution = <-solveChan:
		}
		if transformErr != nil {
			return nil, 0, transformErr
		}
		if solution.err != nil {
			// This just happens sometimes in randomized nonlinear problems.
			// Another seed may still find a solution.
			ik.logger.Debugw("nlopt returned an error", "error", solution.err)
		}
		if solution.solution != nil && solution.score < bestScore {
			best = solution.solution
			bestScore = solution.score
		}
		if bestScore <= ik.cfg.Tolerance {
			return best, bestScore, nil
		}
		startingPos = ik.randomRestart(rnd)
	}
	return best, bestScore, errors.Wrapf(ErrIKFailed, "best score %g after %d attempts", bestScore, ik.cfg.Restarts+1)
}

// randomRestart generates a seed within the limits. Infinite limits fall back
// to [-999, 999].
func (ik *NloptIK) randomRestart(rnd *rand.Rand) []float64 {
	pos := make([]float64, len(ik.lowerBound))
	for i, l := range ik.lowerBound {
		u := ik.upperBound[i]
		if l == math.Inf(-1) {
			l = -999
		}
		if u == math.Inf(1) {
			u = 999
		}
		pos[i] = l + rnd.Float64()*(u-l)
	}
	return pos
}

// calcJump picks per-joint finite difference steps, using the smallest value
// that yields a change in the metric from the seed.
func (ik *NloptIK) calcJump(testJump float64, seed []float64, metric StateMetric) ([]float64, error) {
	jump := make([]float64, 0, len(seed))
	seedTest := append(make([]float64, 0, len(seed)), seed...)
	pose, err := ik.frame.Transform(seed)
	if err != nil {
		return nil, err
	}
	seedDist := metric(pose)
	for i, testVal := range seed {
		for jumpVal := testJump; jumpVal < 1; jumpVal *= 10 {
			seedTest[i] = testVal + jumpVal
			if seedTest[i] > ik.upperBound[i] {
				seedTest[i] = testVal - jumpVal
				if seedTest[i] < ik.lowerBound[i] {
					break
				}
			}
			pose, err := ik.frame.Transform(seedTest)
			if err != nil {
				return nil, err
			}
			if metric(pose) != seedDist {
				jump = append(jump, jumpVal)
				break
			}
		}
		seedTest[i] = testVal
		if len(jump) != i+1 {
			jump = append(jump, testJump)
		}
	}
	return jump, nil
}

func limitsToArrays(limits []Limit) ([]float64, []float64) {
	var min, max []float64
	for _, limit := range limits {
		min = append(min, limit.Min)
		max = append(max, limit.Max)
	}
	return min, max
}
