package kinematics

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mmurooka/differentiable-rmap/spatialmath"
)

const (
	defaultTolerance    = 1e-6
	defaultRestarts     = 10
	defaultOrientWeight = 10.
)

// ErrIKFailed is returned when no attempt reaches the solver tolerance. The
// best joint values found are still returned alongside it.
var ErrIKFailed = errors.New("unable to reach the goal pose")

// IKConfig configures an inverse kinematics solver. Zero values select
// defaults.
type IKConfig struct {
	// Tolerance is the metric score below which a solution is accepted.
	Tolerance float64
	// MaxIterations caps the work done per attempt. Each solver applies its
	// own default when zero.
	MaxIterations int
	// Restarts is the number of random seeds tried after the provided one.
	Restarts int
	// OrientWeight scales orientation error against position error in the
	// default metric.
	OrientWeight float64
	// GoalMetric builds the score function for a goal pose. Defaults to
	// NewSquaredNormMetric with OrientWeight.
	GoalMetric func(goal spatialmath.Pose) StateMetric
	// Seed seeds the restart generator.
	Seed int64
}

func (cfg IKConfig) withDefaults() IKConfig {
	if cfg.Tolerance == 0 {
		cfg.Tolerance = defaultTolerance
	}
	if cfg.Restarts == 0 {
		cfg.Restarts = defaultRestarts
	}
	if cfg.OrientWeight == 0 {
		cfg.OrientWeight = defaultOrientWeight
	}
	if cfg.GoalMetric == nil {
		weight := cfg.OrientWeight
		cfg.GoalMetric = func(goal spatialmath.Pose) StateMetric {
			return NewSquaredNormMetric(goal, weight)
		}
	}
	return cfg
}

// Solver finds joint values bringing a frame to a goal pose.
type Solver interface {
	// Solve returns the best joint values found and the metric score they
	// achieve. When no attempt reaches the tolerance the best values are
	// returned together with a wrapped ErrIKFailed.
	Solve(ctx context.Context, goal spatialmath.Pose, seed []float64) ([]float64, float64, error)
}
