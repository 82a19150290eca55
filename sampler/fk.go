package sampler

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/mmurooka/differentiable-rmap/kinematics"
	"github.com/mmurooka/differentiable-rmap/logging"
	"github.com/mmurooka/differentiable-rmap/sampleset"
	"github.com/mmurooka/differentiable-rmap/sampling"
)

// FKSampler generates reachable samples by drawing random joint
// configurations within the limits and recording the resulting body pose.
// Every sample it produces is reachable.
type FKSampler struct {
	frame  kinematics.Frame
	space  sampling.Space
	cfg    Config
	logger logging.Logger

	// Per-joint coefficient and offset mapping [-1, 1] onto the limits.
	coeff  []float64
	offset []float64
}

// NewFKSampler returns a sampler recording the pose of frame under random
// joint configurations.
func NewFKSampler(frame kinematics.Frame, space sampling.Space, cfg Config, logger logging.Logger) (*FKSampler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	limits := frame.DoF()
	if len(limits) == 0 {
		return nil, errors.New("frame has no degrees of freedom")
	}
	coeff := make([]float64, len(limits))
	offset := make([]float64, len(limits))
	for i, l := range limits {
		coeff[i] = (l.Max - l.Min) / 2
		offset[i] = (l.Max + l.Min) / 2
	}
	return &FKSampler{frame: frame, space: space, cfg: cfg, logger: logger, coeff: coeff, offset: offset}, nil
}

// Run implements Sampler.
func (s *FKSampler) Run(ctx context.Context) (*sampleset.Set, error) {
	set, err := sampleset.NewSet(s.space.Kind())
	if err != nil {
		return nil, err
	}
	//nolint:gosec
	rnd := rand.New(rand.NewSource(s.cfg.Seed))
	q := make([]float64, len(s.coeff))
	for i := 0; i < s.cfg.NumSamples; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := range q {
			q[j] = s.coeff[j]*(2*rnd.Float64()-1) + s.offset[j]
		}
		pose, err := s.frame.Transform(q)
		if err != nil {
			return nil, err
		}
		if err := set.Add(s.space.PoseToSample(pose), true); err != nil {
			return nil, err
		}
		s.cfg.publishProgress(set, i)
	}
	s.logger.Infow("generated samples by forward kinematics", "frame", s.frame.Name(), "samples", set.Len())
	return set, nil
}
