package kinematics

import (
	"context"
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/mmurooka/differentiable-rmap/logging"
	"github.com/mmurooka/differentiable-rmap/spatialmath"
)

const (
	defaultDescentIterations = 100
	descentFDStep            = 1e-6
	descentInitialStep       = 0.5
	descentMaxStep           = 1.0
	descentMaxBacktracks     = 20
	descentGradientFloor     = 1e-12
)

// GradientIK solves inverse kinematics by finite-difference gradient descent
// on a goal metric, restarting from random joint values when an attempt
// stalls away from the goal.
type GradientIK struct {
	frame  Frame
	cfg    IKConfig
	limits []Limit
	logger logging.Logger
}

// NewGradientIK returns a pure Go solver for the given frame.
func NewGradientIK(frame Frame, cfg IKConfig, logger logging.Logger) *GradientIK {
	cfg = cfg.withDefaults()
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = defaultDescentIterations
	}
	return &GradientIK{frame: frame, cfg: cfg, limits: frame.DoF(), logger: logger}
}

// Solve implements Solver.
func (ik *GradientIK) Solve(ctx context.Context, goal spatialmath.Pose, seed []float64) ([]float64, float64, error) {
	if len(seed) != len(ik.limits) {
		return nil, 0, errors.Errorf("got %d seed values, want %d", len(seed), len(ik.limits))
	}
	metric := ik.cfg.GoalMetric(goal)
	//nolint:gosec
	rnd := rand.New(rand.NewSource(ik.cfg.Seed))

	q := make([]float64, len(seed))
	copy(q, seed)
	clampToLimits(q, ik.limits)

	var best []float64
	bestScore := math.Inf(1)
	for attempt := 0; attempt <= ik.cfg.Restarts; attempt++ {
		solved, score, err := ik.descend(ctx, metric, q)
		if err != nil {
			return best, bestScore, err
		}
		if score < bestScore {
			best = solved
			bestScore = score
		}
		if bestScore <= ik.cfg.Tolerance {
			return best, bestScore, nil
		}
		ik.logger.Debugw("restarting from random seed", "attempt", attempt+1, "score", bestScore)
		q = RandomInputs(ik.limits, rnd)
	}
	return best, bestScore, errors.Wrapf(ErrIKFailed, "best score %g after %d attempts", bestScore, ik.cfg.Restarts+1)
}

// descend runs damped gradient descent from start and returns the best joint
// values it reached and their score.
func (ik *GradientIK) descend(ctx context.Context, metric StateMetric, start []float64) ([]float64, float64, error) {
	q := make([]float64, len(start))
	copy(q, start)
	pose, err := ik.frame.Transform(q)
	if err != nil {
		return nil, 0, err
	}
	score := metric(pose)

	grad := make([]float64, len(q))
	trial := make([]float64, len(q))
	step := descentInitialStep
	for iter := 0; iter < ik.cfg.MaxIterations && score > ik.cfg.Tolerance; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		for j := range q {
			orig := q[j]
			q[j] = orig + descentFDStep
			forward, err := ik.frame.Transform(q)
			if err != nil {
				return nil, 0, err
			}
			q[j] = orig - descentFDStep
			backward, err := ik.frame.Transform(q)
			if err != nil {
				return nil, 0, err
			}
			q[j] = orig
			grad[j] = (metric(forward) - metric(backward)) / (2 * descentFDStep)
		}
		norm := floats.Norm(grad, 2)
		if norm < descentGradientFloor {
			break
		}

		// Backtracking line search along the normalized descent direction.
		improved := false
		for bt := 0; bt < descentMaxBacktracks; bt++ {
			for j := range q {
				trial[j] = q[j] - step*grad[j]/norm
			}
			clampToLimits(trial, ik.limits)
			pose, err := ik.frame.Transform(trial)
			if err != nil {
				return nil, 0, err
			}
			if s := metric(pose); s < score {
				copy(q, trial)
				score = s
				step = math.Min(step*1.5, descentMaxStep)
				improved = true
				break
			}
			step *= 0.5
		}
		if !improved {
			break
		}
	}
	return q, score, nil
}
