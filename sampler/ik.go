package sampler

import (
	"context"
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"github.com/mmurooka/differentiable-rmap/kinematics"
	"github.com/mmurooka/differentiable-rmap/logging"
	"github.com/mmurooka/differentiable-rmap/sampleset"
	"github.com/mmurooka/differentiable-rmap/sampling"
	"github.com/mmurooka/differentiable-rmap/spatialmath"
)

// IKConfig configures an IKSampler.
type IKConfig struct {
	Config
	// PosMin and PosMax bound the box target positions are drawn from.
	// When equal they default to the unit box.
	PosMin r3.Vector
	PosMax r3.Vector
}

// Validate ensures all parts of the config are valid.
func (cfg IKConfig) Validate() error {
	if err := cfg.Config.Validate(); err != nil {
		return err
	}
	if cfg.PosMin.X > cfg.PosMax.X || cfg.PosMin.Y > cfg.PosMax.Y || cfg.PosMin.Z > cfg.PosMax.Z {
		return errors.New("position bounds are inverted")
	}
	return nil
}

func (cfg IKConfig) withDefaults() IKConfig {
	if cfg.PosMin == cfg.PosMax {
		cfg.PosMin = r3.Vector{X: -1, Y: -1, Z: -1}
		cfg.PosMax = r3.Vector{X: 1, Y: 1, Z: 1}
	}
	return cfg
}

// IKSampler generates samples by drawing random target poses and attempting
// to reach them with an inverse kinematics solver. Targets the solver reaches
// are recorded reachable, the rest unreachable, so both labels appear in the
// resulting set.
type IKSampler struct {
	frame  kinematics.Frame
	space  sampling.Space
	solver kinematics.Solver
	cfg    IKConfig
	logger logging.Logger
}

// NewIKSampler returns a sampler labeling random poses by IK success.
func NewIKSampler(
	frame kinematics.Frame,
	space sampling.Space,
	solver kinematics.Solver,
	cfg IKConfig,
	logger logging.Logger,
) (*IKSampler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &IKSampler{frame: frame, space: space, solver: solver, cfg: cfg.withDefaults(), logger: logger}, nil
}

// Run implements Sampler.
func (s *IKSampler) Run(ctx context.Context) (*sampleset.Set, error) {
	set, err := sampleset.NewSet(s.space.Kind())
	if err != nil {
		return nil, err
	}
	//nolint:gosec
	rnd := rand.New(rand.NewSource(s.cfg.Seed))

	// Warm start each solve from the previous success.
	seed := make([]float64, len(s.frame.DoF()))
	for i := 0; i < s.cfg.NumSamples; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target := s.randomTarget(rnd)
		solution, _, err := s.solver.Solve(ctx, target, seed)
		reachable := err == nil
		if err != nil && !errors.Is(err, kinematics.ErrIKFailed) {
			return nil, err
		}
		if reachable {
			copy(seed, solution)
		}
		if err := set.Add(s.space.PoseToSample(target), reachable); err != nil {
			return nil, err
		}
		s.cfg.publishProgress(set, i)
	}
	s.logger.Infow("generated samples by inverse kinematics",
		"frame", s.frame.Name(),
		"samples", set.Len(),
		"reachable", set.NumReachable(),
		"unreachable", set.NumUnreachable())
	return set, nil
}

// randomTarget draws a pose from the sampling box, leaving components the
// space discards at identity.
func (s *IKSampler) randomTarget(rnd *rand.Rand) spatialmath.Pose {
	var point r3.Vector
	switch s.space.Kind() {
	case sampling.R2, sampling.SE2:
		point = r3.Vector{
			X: uniform(rnd, s.cfg.PosMin.X, s.cfg.PosMax.X),
			Y: uniform(rnd, s.cfg.PosMin.Y, s.cfg.PosMax.Y),
		}
	case sampling.R3, sampling.SE3:
		point = r3.Vector{
			X: uniform(rnd, s.cfg.PosMin.X, s.cfg.PosMax.X),
			Y: uniform(rnd, s.cfg.PosMin.Y, s.cfg.PosMax.Y),
			Z: uniform(rnd, s.cfg.PosMin.Z, s.cfg.PosMax.Z),
		}
	}
	orient := quat.Number{Real: 1}
	switch s.space.Kind() {
	case sampling.SO2, sampling.SE2:
		orient = spatialmath.NewZRotation(uniform(rnd, -math.Pi, math.Pi))
	case sampling.SO3, sampling.SE3:
		orient = spatialmath.RandomQuat(rnd)
	}
	return spatialmath.NewPose(point, orient)
}

func uniform(rnd *rand.Rand, min, max float64) float64 {
	return min + rnd.Float64()*(max-min)
}
