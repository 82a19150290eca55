package sampler

import (
	"context"
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/mmurooka/differentiable-rmap/logging"
	"github.com/mmurooka/differentiable-rmap/sampleset"
	"github.com/mmurooka/differentiable-rmap/sampling"
	"github.com/mmurooka/differentiable-rmap/spatialmath"
)

const defaultFootstepMargin = 0.5

// Default transition region for a foot stepping relative to its support foot.
var (
	defaultLowerFootstep = FootstepBound{X: -0.2, Y: 0.1, Yaw: -20 * math.Pi / 180}
	defaultUpperFootstep = FootstepBound{X: 0.2, Y: 0.3, Yaw: 20 * math.Pi / 180}
)

// FootstepBound is a footstep transition limit: x and y in meters, yaw in
// radians.
type FootstepBound struct {
	X   float64
	Y   float64
	Yaw float64
}

// FootstepConfig configures a FootstepSampler.
type FootstepConfig struct {
	Config
	// Lower and Upper bound the reachable transition region around the
	// nominal step. When both are zero the default region is used.
	Lower FootstepBound
	Upper FootstepBound
	// Margin widens the sampled region beyond the reachable one, as a
	// fraction of the region half-width, so both labels appear in the set.
	Margin float64
}

func (cfg FootstepConfig) withDefaults() FootstepConfig {
	if cfg.Lower == (FootstepBound{}) && cfg.Upper == (FootstepBound{}) {
		cfg.Lower = defaultLowerFootstep
		cfg.Upper = defaultUpperFootstep
	}
	if cfg.Margin == 0 {
		cfg.Margin = defaultFootstepMargin
	}
	return cfg
}

// Validate ensures all parts of the config are valid.
func (cfg FootstepConfig) Validate() error {
	if err := cfg.Config.Validate(); err != nil {
		return err
	}
	if cfg.Lower.X > cfg.Upper.X || cfg.Lower.Y > cfg.Upper.Y || cfg.Lower.Yaw > cfg.Upper.Yaw {
		return errors.New("footstep bounds are inverted")
	}
	if cfg.Margin < 0 {
		return errors.New("margin cannot be negative")
	}
	return nil
}

// FootstepSampler generates SE2 step transition samples without a robot
// model. A sample is reachable when it falls inside the configured transition
// rectangle and yaw range.
type FootstepSampler struct {
	space  sampling.Space
	cfg    FootstepConfig
	logger logging.Logger

	// Widened sampling bounds enclosing the reachable region.
	low  FootstepBound
	high FootstepBound
}

// NewFootstepSampler returns a sampler over the SE2 step transition region.
func NewFootstepSampler(cfg FootstepConfig, logger logging.Logger) (*FootstepSampler, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	space, err := sampling.NewSpace(sampling.SE2)
	if err != nil {
		return nil, err
	}
	widen := func(l, u float64) (float64, float64) {
		center := (l + u) / 2
		half := (u - l) / 2 * (1 + cfg.Margin)
		return center - half, center + half
	}
	s := &FootstepSampler{space: space, cfg: cfg, logger: logger}
	s.low.X, s.high.X = widen(cfg.Lower.X, cfg.Upper.X)
	s.low.Y, s.high.Y = widen(cfg.Lower.Y, cfg.Upper.Y)
	s.low.Yaw, s.high.Yaw = widen(cfg.Lower.Yaw, cfg.Upper.Yaw)
	return s, nil
}

// Run implements Sampler.
func (s *FootstepSampler) Run(ctx context.Context) (*sampleset.Set, error) {
	set, err := sampleset.NewSet(sampling.SE2)
	if err != nil {
		return nil, err
	}
	//nolint:gosec
	rnd := rand.New(rand.NewSource(s.cfg.Seed))
	for i := 0; i < s.cfg.NumSamples; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		x := uniform(rnd, s.low.X, s.high.X)
		y := uniform(rnd, s.low.Y, s.high.Y)
		yaw := uniform(rnd, s.low.Yaw, s.high.Yaw)
		reachable := x >= s.cfg.Lower.X && x <= s.cfg.Upper.X &&
			y >= s.cfg.Lower.Y && y <= s.cfg.Upper.Y &&
			yaw >= s.cfg.Lower.Yaw && yaw <= s.cfg.Upper.Yaw
		pose := spatialmath.NewPose(r3.Vector{X: x, Y: y}, spatialmath.NewZRotation(yaw))
		if err := set.Add(s.space.PoseToSample(pose), reachable); err != nil {
			return nil, err
		}
		s.cfg.publishProgress(set, i)
	}
	s.logger.Infow("generated footstep transition samples",
		"samples", set.Len(),
		"reachable", set.NumReachable(),
		"unreachable", set.NumUnreachable())
	return set, nil
}
